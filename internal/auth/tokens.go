package auth

import (
	"time"
	"waitline/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

var ErrInvalidToken = errors.New("invalid or expired token")

const (
	tokenAccess  = "access"
	tokenRefresh = "refresh"
)

// Claims are carried by staff access and refresh tokens.
type Claims struct {
	StaffID string `json:"staff_id"`
	Role    string `json:"role"`
	Type    string `json:"typ"`
	jwt.RegisteredClaims
}

// QRClaims are carried by the token printed in a queue's join QR code.
type QRClaims struct {
	QueueID string `json:"queue_id"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies every token the service hands out.
type Issuer struct {
	accessSecret  []byte
	refreshSecret []byte
	qrSecret      []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	qrTTL         time.Duration
	now           func() time.Time
}

func NewIssuer(cfg config.AuthConfig) *Issuer {
	return &Issuer{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		qrSecret:      []byte(cfg.QRSecret),
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		qrTTL:         cfg.QRTokenTTL,
		now:           time.Now,
	}
}

// IssuePair returns a fresh access and refresh token for the staff member.
func (i *Issuer) IssuePair(staffID, role string) (access, refresh string, err error) {
	access, err = i.sign(staffID, role, tokenAccess, i.accessTTL, i.accessSecret)
	if err != nil {
		return "", "", errors.Wrap(err, "auth: sign access token")
	}
	refresh, err = i.sign(staffID, role, tokenRefresh, i.refreshTTL, i.refreshSecret)
	if err != nil {
		return "", "", errors.Wrap(err, "auth: sign refresh token")
	}
	return access, refresh, nil
}

func (i *Issuer) sign(staffID, role, typ string, ttl time.Duration, secret []byte) (string, error) {
	now := i.now()
	claims := Claims{
		StaffID: staffID,
		Role:    role,
		Type:    typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   staffID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func (i *Issuer) ParseAccess(token string) (*Claims, error) {
	return i.parse(token, tokenAccess, i.accessSecret)
}

func (i *Issuer) ParseRefresh(token string) (*Claims, error) {
	return i.parse(token, tokenRefresh, i.refreshSecret)
}

func (i *Issuer) parse(token, typ string, secret []byte) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(i.now))
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Type != typ || claims.StaffID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// IssueQR signs a join token bound to one queue.
func (i *Issuer) IssueQR(queueID string) (string, time.Time, error) {
	now := i.now()
	expires := now.Add(i.qrTTL)
	claims := QRClaims{
		QueueID: queueID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.qrSecret)
	if err != nil {
		return "", time.Time{}, errors.Wrap(err, "auth: sign qr token")
	}
	return token, expires, nil
}

// ParseQR verifies a join token and returns the queue it admits to.
func (i *Issuer) ParseQR(token string) (string, error) {
	claims := &QRClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return i.qrSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(i.now))
	if err != nil || !parsed.Valid || claims.QueueID == "" {
		return "", ErrInvalidToken
	}
	return claims.QueueID, nil
}
