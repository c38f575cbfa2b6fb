package user

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMakeVerifyToken(t *testing.T) {
	gen := tokenGenerator{secretKey: []byte("secret"), timeout: 3 * 24 * time.Hour}

	now := time.Now()
	usr := User{
		ID:        1,
		Name:      "T",
		Username:  "t",
		Email:     "t@test.test",
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
		LastLogin: now,
	}
	_ = usr.SetPassword("pwd")

	validToken := gen.makeToken(usr)

	// generate an expired token
	dayLate := gen.timeout + (24 * time.Hour)
	nowFunc = func() time.Time { return time.Now().Add(-dayLate) }
	expiredToken := gen.makeToken(usr)
	nowFunc = time.Now // reset

	// a login invalidates the token
	loggedIn := usr
	loggedIn.LastLogin = now.Add(time.Minute)

	otherKey := tokenGenerator{secretKey: []byte("other"), timeout: gen.timeout}

	tests := []struct {
		name    string
		gen     tokenGenerator
		usr     User
		token   string
		wantErr error
	}{
		{name: "no token", gen: gen, usr: usr, wantErr: errInvalidToken},
		{name: "invalid parts len", gen: gen, usr: usr, token: "lmaooolol", wantErr: errInvalidToken},
		{name: "invalid base32", gen: gen, usr: usr, token: "hahaha-sigsig-sig", wantErr: errInvalidToken},
		{name: "invalid timestamp", gen: gen, usr: usr, token: "NRXWY-sigsig-sig", wantErr: errInvalidToken},
		{name: "invalid token", gen: gen, usr: usr, token: "HE4TS-sigsig-sig", wantErr: errInvalidToken},
		{name: "expired token", gen: gen, usr: usr, token: expiredToken, wantErr: errTokenExpired},
		{name: "user logged in since", gen: gen, usr: loggedIn, token: validToken, wantErr: errInvalidToken},
		{name: "other secret key", gen: otherKey, usr: usr, token: validToken, wantErr: errInvalidToken},
		{name: "valid token", gen: gen, usr: usr, token: validToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantErr, tt.gen.verifyToken(tt.usr, tt.token))
		})
	}
}

func TestEncodeDecodeUID(t *testing.T) {
	id, err := decodeUID(EncodeUID(User{ID: 42}))
	assert.NoError(t, err)
	assert.Equal(t, 42, id)

	for _, uid := range []string{"", "!!", "bG9s" /* lol */, "MA" /* 0 */} {
		_, err = decodeUID(uid)
		assert.Equal(t, errInvalidUID, err, uid)
	}
}
