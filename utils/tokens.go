package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"
)

// Claims is the access token payload.
type Claims struct {
	RiderID string `json:"rider_id"`
	Role    string `json:"role"`
	jwt.StandardClaims
}

type Manager struct {
	signingKey string
	now        func() time.Time
}

func NewManager(signingKey string) (*Manager, error) {
	if signingKey == "" {
		return nil, errors.New("empty signing key")
	}

	return &Manager{signingKey: signingKey, now: time.Now}, nil
}

func (m *Manager) NewJWT(riderID, role string, ttl time.Duration) (string, error) {
	now := m.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RiderID: riderID,
		Role:    role,
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: now.Add(ttl).Unix(),
			IssuedAt:  now.Unix(),
			Subject:   riderID,
		},
	})

	return token.SignedString([]byte(m.signingKey))
}

func (m *Manager) Parse(accessToken string) (Claims, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(accessToken, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(m.signingKey), nil
	})
	if err != nil {
		return Claims{}, err
	}
	if !token.Valid || claims.RiderID == "" {
		return Claims{}, errors.New("invalid token")
	}
	return claims, nil
}

// RiderID parses the token and returns only the rider id. It matches the websocket
// hub's token verifier signature.
func (m *Manager) RiderID(accessToken string) (string, error) {
	c, err := m.Parse(accessToken)
	if err != nil {
		return "", err
	}
	return c.RiderID, nil
}
