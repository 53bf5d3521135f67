package app

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
)

/*
 * caller resolves the identity a request acts as. With access tokens
 * configured the Token header selects one and its address is used;
 * without tokens the Caller header is trusted as is. Writes the 401
 * response itself and returns false when no identity can be resolved.
 */
func (a *API) caller(c *gin.Context) (common.Address, bool) {
	a.l.Lock()
	tokens := a.accessTokens
	a.l.Unlock()

	if len(tokens) != 0 {
		token := c.GetHeader("Token")
		if token == "" {
			c.JSON(401, errorBody("need access token"))
			return common.Address{}, false
		}
		for _, t := range tokens {
			if t.Token == token {
				if !common.IsHexAddress(t.Address) {
					a.log.WithField("token", t.Name).Error("access token has no valid address")
					c.JSON(401, errorBody("token is not bound to an identity"))
					return common.Address{}, false
				}
				return common.HexToAddress(t.Address), true
			}
		}
		c.JSON(401, errorBody("invalid token"))
		return common.Address{}, false
	}

	h := c.GetHeader("Caller")
	if !common.IsHexAddress(h) {
		c.JSON(401, errorBody("need Caller header"))
		return common.Address{}, false
	}
	return common.HexToAddress(h), true
}
