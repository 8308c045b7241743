package response

import (
	"github.com/gin-gonic/gin"
)

var productionMode bool

// SetProductionMode controla a sanitização de erros internos.
func SetProductionMode(enabled bool) {
	productionMode = enabled
}

func Success(c *gin.Context, status int, data any) {
	if data == nil {
		c.JSON(status, gin.H{"success": true})
		return
	}
	c.JSON(status, data)
}

func OK(c *gin.Context) {
	c.JSON(200, gin.H{"success": true})
}

func Error(c *gin.Context, status int, err error) {
	ErrorWithMessage(c, status, err.Error())
}

func ErrorWithMessage(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// InternalError devolve 500 com mensagem genérica em produção;
// fora de produção expõe o erro para facilitar diagnóstico.
func InternalError(c *gin.Context, err error) {
	msg := "erro interno"
	if !productionMode && err != nil {
		msg = err.Error()
	}
	c.AbortWithStatusJSON(500, gin.H{"error": msg})
}
