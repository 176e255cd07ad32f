// Package auth implements Aria's symmetric JWT claim shapes and refresh-token
// serialization helpers. Two short-lived claim shapes are signed with
// one process-wide HMAC secret: a room-scoped access token (1 hour TTL) and
// an eternal pseudonymous user-identity token. Refresh tokens are opaque
// UUIDs minted and rotated by the store; this package only (de)serializes
// the claims a refresh token stands in for.
package auth

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/aria-chat/backend/go/internal/v1/apperr"
	"github.com/golang-jwt/jwt/v5"
)

// LevelRoom tags a Claims value as a room access token, mirroring the
// `{level: "room", room_id}` tagged variant in the spec.
const LevelRoom = "room"

// Claims is the single JWT claim shape Aria issues and verifies, holding
// whichever fields its level requires. Parameterizing the shape by level
// rather than building a separate verifier per shape keeps Expired vs.
// Invalid distinguishable in exactly one place.
type Claims struct {
	Level  string `json:"level,omitempty"`
	RoomID int64  `json:"room_id,omitempty"`
	UserID int64  `json:"user_id,omitempty"`
	jwt.RegisteredClaims
}

// IsRoom reports whether c is a room access token.
func (c *Claims) IsRoom() bool { return c.Level == LevelRoom }

// ForRoom reports whether c is a room access token scoped to roomID.
func (c *Claims) ForRoom(roomID int64) bool {
	return c.IsRoom() && c.RoomID == roomID
}

// Service generates and verifies Claims using a process-wide HMAC secret.
type Service struct {
	secret []byte
}

// NewService builds a Service from the configured JWT secret.
func NewService(secret string) *Service {
	return &Service{secret: []byte(secret)}
}

// GenerateRoomToken issues a 1-hour room access token for roomID.
func (s *Service) GenerateRoomToken(roomID int64) (token string, expiresAt time.Time, err error) {
	expiresAt = time.Now().Add(time.Hour)
	claims := &Claims{
		Level:  LevelRoom,
		RoomID: roomID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err = s.sign(claims)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// GenerateUserToken issues an eternal user-identity token; it carries no
// exp claim, so verification never reports it as expired.
func (s *Service) GenerateUserToken(userID int64) (string, error) {
	claims := &Claims{UserID: userID}
	return s.sign(claims)
}

func (s *Service) sign(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", apperr.Wrap(apperr.KindAuthCreation, "failed to sign token", err)
	}
	return signed, nil
}

// Verify parses and validates token, distinguishing an expired signature
// from every other invalid-token condition so the HTTP boundary can map
// them to different statuses (401 vs 400).
func (s *Service) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperr.Wrap(apperr.KindAuthExpired, "access token expired", err)
		}
		return nil, apperr.Wrap(apperr.KindAuthInvalid, "invalid access token", err)
	}
	return claims, nil
}

// MarshalClaims serializes claims for storage behind an opaque refresh
// token; the store persists only the JSON blob, never a JWT.
func MarshalClaims(claims *Claims) (string, error) {
	b, err := json.Marshal(claims)
	if err != nil {
		return "", apperr.Wrap(apperr.KindAuthCreation, "failed to marshal refresh claims", err)
	}
	return string(b), nil
}

// UnmarshalClaims parses claims previously produced by MarshalClaims.
func UnmarshalClaims(blob string) (*Claims, error) {
	claims := &Claims{}
	if err := json.Unmarshal([]byte(blob), claims); err != nil {
		return nil, apperr.Wrap(apperr.KindAuthInvalid, "failed to unmarshal refresh claims", err)
	}
	return claims, nil
}
