package middleware

// identity.go defines helpers shared across middleware files.  The rate
// limiter keys on the authenticated user when one is present; these
// helpers pull the identity out of context without caring which
// middleware put it there.

import (
    "strconv"

    "github.com/labstack/echo/v4"
)

// currentUserID extracts a user identifier stored in context by JWTAuth.
// It returns "anon" when no user is authenticated, so unauthenticated
// traffic shares one bucket per IP/route.
func currentUserID(c echo.Context) string {
    if v := c.Get("user_id"); v != nil {
        switch s := v.(type) {
        case string:
            if s != "" {
                return s
            }
        case float64:
            // MapClaims decodes numeric subjects as float64.
            if s > 0 {
                return strconv.FormatUint(uint64(s), 10)
            }
        }
    }
    return "anon"
}
