package server

import (
	_ "embed"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"github.com/swaggo/swag"
)

const apiDocsPrefix = "/swagger/"

//go:embed swagger.json
var swaggerTemplate string

// apiSpec describes the read-only JSON API for the swagger UI
var apiSpec = &swag.Spec{
	Version:          "1.0",
	BasePath:         "/",
	Title:            "Competitor docs tracker",
	Description:      "Read-only view of ServiceNow connector comparison scores, score history and documentation checks.",
	InfoInstanceName: "tracker",
	SwaggerTemplate:  swaggerTemplate,
}

func init() {
	swag.Register(apiSpec.InstanceName(), apiSpec)
}

func apiDocsHandler() gin.HandlerFunc {
	return ginSwagger.WrapHandler(swaggerFiles.Handler,
		ginSwagger.InstanceName(apiSpec.InstanceName()),
		ginSwagger.URL(apiDocsPrefix+"doc.json"),
	)
}
