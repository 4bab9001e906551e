// Package qrtoken encodes and validates the short-lived action tokens
// that members display as QR codes at the front desk.  A token is a
// compact base64url(JSON) payload carrying the user, the action and the
// issuance time; it is never persisted, so validity is purely a function
// of its contents and the clock.  When the codec is constructed with a
// secret, an HMAC-SHA256 tag is appended as a second base64url segment
// and verified on decode, closing the forgery window the unsigned format
// leaves open.
package qrtoken

import (
    "crypto/hmac"
    "crypto/sha256"
    "encoding/base64"
    "encoding/json"
    "errors"
    "strconv"
    "strings"
    "time"
)

// Action identifies what redeeming a token does at the scanner.
type Action string

const (
    ActionEntry  Action = "entry"  // open a check-in
    ActionExit   Action = "exit"   // close the newest open check-in
    ActionReward Action = "reward" // claim an earned reward
)

// Valid reports whether a is one of the three known actions.
func (a Action) Valid() bool {
    switch a {
    case ActionEntry, ActionExit, ActionReward:
        return true
    }
    return false
}

// DefaultMaxAge is the validity window applied when the codec is
// constructed with a non-positive max age: five minutes from issuance.
const DefaultMaxAge = 5 * time.Minute

var (
    // ErrTokenMalformed is returned for any input that does not decode
    // to a fully populated payload with a known action.  Decoding fails
    // closed; a partially populated payload is never returned.
    ErrTokenMalformed = errors.New("qrtoken: malformed token")

    // ErrTokenForged is returned when the codec has a secret configured
    // and the token's signature segment is missing or does not match.
    ErrTokenForged = errors.New("qrtoken: bad token signature")
)

// Payload is the decoded content of a token.
type Payload struct {
    UserID    uint64 // embedded member identity
    IssuedAt  int64  // issuance time in Unix milliseconds
    Action    Action // entry, exit or reward
    SessionID string // optional uniqueness salt, empty when absent
}

// IssuedAtTime returns the issuance instant as a time.Time in UTC.
func (p Payload) IssuedAtTime() time.Time {
    return time.UnixMilli(p.IssuedAt).UTC()
}

// wireToken is the JSON shape that travels inside the barcode.  Fields
// are pointers so that absent and zero values can be told apart when
// decoding.
type wireToken struct {
    UserID    *string `json:"userId"`
    Timestamp *int64  `json:"timestamp"`
    Action    *string `json:"action"`
    SessionID *string `json:"sessionId,omitempty"`
}

// Codec issues and decodes tokens.  The zero value is not usable; build
// one with New.  now is swappable so tests can pin the clock.
type Codec struct {
    secret []byte
    maxAge time.Duration
    now    func() time.Time
}

// Option customises a Codec.
type Option func(*Codec)

// WithClock injects a clock.  Tests pin it; callers that share a codec
// with a clock-injected service pass the same function so liveness and
// the recorded check-in times agree.
func WithClock(now func() time.Time) Option {
    return func(c *Codec) {
        if now != nil {
            c.now = now
        }
    }
}

// New returns a Codec.  secret may be empty, in which case tokens are
// unsigned and decode accepts unsigned input.  maxAge <= 0 selects
// DefaultMaxAge.
func New(secret string, maxAge time.Duration, opts ...Option) *Codec {
    if maxAge <= 0 {
        maxAge = DefaultMaxAge
    }
    c := &Codec{maxAge: maxAge, now: time.Now}
    if secret != "" {
        c.secret = []byte(secret)
    }
    for _, opt := range opts {
        opt(c)
    }
    return c
}

// MaxAge returns the configured validity window.
func (c *Codec) MaxAge() time.Duration { return c.maxAge }

// Issue builds a token for the given user and action.  sessionSalt may
// be empty; for reward tokens the caller passes a salt so that two
// tokens issued in the same millisecond stay distinguishable as claim
// keys.  The returned string is ready to be rendered as a QR code.
func (c *Codec) Issue(userID uint64, action Action, sessionSalt string) (string, Payload, error) {
    return c.IssueAt(userID, action, sessionSalt, c.now())
}

// IssueAt is Issue with an explicit issuance instant.
func (c *Codec) IssueAt(userID uint64, action Action, sessionSalt string, at time.Time) (string, Payload, error) {
    if userID == 0 || !action.Valid() {
        return "", Payload{}, ErrTokenMalformed
    }
    p := Payload{
        UserID:    userID,
        IssuedAt:  at.UnixMilli(),
        Action:    action,
        SessionID: sessionSalt,
    }
    uid := strconv.FormatUint(p.UserID, 10)
    act := string(p.Action)
    w := wireToken{UserID: &uid, Timestamp: &p.IssuedAt, Action: &act}
    if p.SessionID != "" {
        w.SessionID = &p.SessionID
    }
    body, err := json.Marshal(w)
    if err != nil {
        return "", Payload{}, err
    }
    tok := base64.RawURLEncoding.EncodeToString(body)
    if c.secret != nil {
        tok += "." + c.sign(body)
    }
    return tok, p, nil
}

// Decode parses and, when a secret is configured, authenticates a token
// string.  Structural validation runs first, so unparseable garbage
// yields ErrTokenMalformed regardless of signing; ErrTokenForged is
// reserved for a well-formed body whose signature segment is missing or
// does not match.  Liveness is not checked here; call IsLive on the
// result.
func (c *Codec) Decode(s string) (Payload, error) {
    s = strings.TrimSpace(s)
    if s == "" {
        return Payload{}, ErrTokenMalformed
    }
    bodyPart, sigPart, signed := strings.Cut(s, ".")
    body, err := base64.RawURLEncoding.DecodeString(bodyPart)
    if err != nil {
        return Payload{}, ErrTokenMalformed
    }
    var w wireToken
    if err := json.Unmarshal(body, &w); err != nil {
        return Payload{}, ErrTokenMalformed
    }
    // Every required field must be present and sensible.
    if w.UserID == nil || w.Timestamp == nil || w.Action == nil {
        return Payload{}, ErrTokenMalformed
    }
    uid, err := strconv.ParseUint(*w.UserID, 10, 64)
    if err != nil || uid == 0 {
        return Payload{}, ErrTokenMalformed
    }
    if *w.Timestamp <= 0 {
        return Payload{}, ErrTokenMalformed
    }
    action := Action(*w.Action)
    if !action.Valid() {
        return Payload{}, ErrTokenMalformed
    }
    if c.secret != nil {
        if !signed || !hmac.Equal([]byte(c.sign(body)), []byte(sigPart)) {
            return Payload{}, ErrTokenForged
        }
    }
    p := Payload{UserID: uid, IssuedAt: *w.Timestamp, Action: action}
    if w.SessionID != nil {
        p.SessionID = *w.SessionID
    }
    return p, nil
}

// IsLive reports whether the payload is still inside its validity
// window: (now - issuedAt) < maxAge.  Tokens dated in the future are
// not live either; a skewed scanner clock must not extend the window.
func (c *Codec) IsLive(p Payload) bool {
    age := c.now().UnixMilli() - p.IssuedAt
    return age >= 0 && age < c.maxAge.Milliseconds()
}

func (c *Codec) sign(body []byte) string {
    mac := hmac.New(sha256.New, c.secret)
    mac.Write(body)
    return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
