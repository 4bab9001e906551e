package middleware

import (
    "bytes"
    "crypto/sha1"
    "encoding/binary"
    "encoding/hex"
    "net/http"
    "sort"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/gym-class-booking/internal/config"
)

// captureWriter tees the response so a successful body can be stored in
// Redis after the handler runs.
type captureWriter struct {
    http.ResponseWriter
    status int
    buf    bytes.Buffer
    limit  int
    over   bool
}

func (w *captureWriter) WriteHeader(code int) {
    w.status = code
    w.ResponseWriter.WriteHeader(code)
}

func (w *captureWriter) Write(p []byte) (int, error) {
    if !w.over {
        if w.limit > 0 && w.buf.Len()+len(p) > w.limit {
            w.over = true
            w.buf.Reset()
        } else {
            w.buf.Write(p)
        }
    }
    return w.ResponseWriter.Write(p)
}

// NewRedisCache caches successful responses for the configured methods.
// The public schedule is the main consumer: occupancy counts there are
// a hint, so serving a few seconds stale is fine.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client) echo.MiddlewareFunc {
    if !cfg.Enabled || rdb == nil {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return func(c echo.Context) error { return next(c) } }
    }

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            req := c.Request()
            if !cfg.Methods[req.Method] {
                return next(c)
            }

            key := cacheKeyFrom(cfg, c)
            ctx := req.Context()

            if raw, err := rdb.Get(ctx, key).Bytes(); err == nil {
                if status, ctype, body, ok := decodePayload(raw); ok {
                    c.Response().Header().Set("X-Cache", "HIT")
                    if ctype != "" {
                        c.Response().Header().Set(echo.HeaderContentType, ctype)
                    }
                    return c.Blob(status, ctype, body)
                }
            }

            cw := &captureWriter{
                ResponseWriter: c.Response().Writer,
                status:         http.StatusOK,
                limit:          cfg.MaxBodyBytes,
            }
            c.Response().Header().Set("X-Cache", "MISS")
            c.Response().Writer = cw

            if err := next(c); err != nil {
                return err
            }

            if cw.status == http.StatusOK && !cw.over && cw.buf.Len() > 0 {
                ctype := c.Response().Header().Get(echo.HeaderContentType)
                payload := encodePayload(cw.status, ctype, cw.buf.Bytes())
                ttl := cfg.TTL
                if ttl <= 0 {
                    ttl = time.Second
                }
                // Store failures are ignored, next request recomputes.
                rdb.Set(ctx, key, payload, ttl)
            }
            return nil
        }
    }
}

func cacheKeyFrom(cfg config.CacheConfig, c echo.Context) string {
    req := c.Request()
    parts := []string{req.Method, c.Path()}

    switch strings.ToLower(cfg.KeyStrategy) {
    case "route":
        // Method and route only.
    case "route_user":
        parts = append(parts, currentUserID(c))
    default: // route_query
        q := req.URL.Query()
        keys := make([]string, 0, len(q))
        for k := range q {
            keys = append(keys, k)
        }
        sort.Strings(keys)
        for _, k := range keys {
            vs := append([]string(nil), q[k]...)
            sort.Strings(vs)
            parts = append(parts, k+"="+strings.Join(vs, ","))
        }
    }

    sum := sha1.Sum([]byte(strings.Join(parts, "|")))
    return cfg.Prefix + ":" + hex.EncodeToString(sum[:])
}

// encodePayload packs status, content type and body into one value:
// [2 bytes status][2 bytes ctype length][ctype][body].
func encodePayload(status int, ctype string, body []byte) []byte {
    out := make([]byte, 0, 4+len(ctype)+len(body))
    var hdr [4]byte
    binary.BigEndian.PutUint16(hdr[0:2], uint16(status))
    binary.BigEndian.PutUint16(hdr[2:4], uint16(len(ctype)))
    out = append(out, hdr[:]...)
    out = append(out, ctype...)
    out = append(out, body...)
    return out
}

func decodePayload(raw []byte) (status int, ctype string, body []byte, ok bool) {
    if len(raw) < 4 {
        return 0, "", nil, false
    }
    status = int(binary.BigEndian.Uint16(raw[0:2]))
    clen := int(binary.BigEndian.Uint16(raw[2:4]))
    if len(raw) < 4+clen {
        return 0, "", nil, false
    }
    ctype = string(raw[4 : 4+clen])
    body = raw[4+clen:]
    return status, ctype, body, true
}
