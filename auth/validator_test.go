package auth

import (
	"testing"

	"github.com/stretchr/testify/require"

	"team-chat/errors"
)

func TestValidateRegister(t *testing.T) {
	valid := RegisterRequest{
		Email:    "alice@corp.example",
		Name:     "Alice",
		Password: "Curr3nt!Passw0rd",
	}

	tests := []struct {
		name    string
		mutate  func(*RegisterRequest)
		wantErr bool
	}{
		{name: "valid request", mutate: func(r *RegisterRequest) {}},
		{name: "missing email", mutate: func(r *RegisterRequest) { r.Email = "" }, wantErr: true},
		{name: "malformed email", mutate: func(r *RegisterRequest) { r.Email = "not-an-email" }, wantErr: true},
		{name: "name too short", mutate: func(r *RegisterRequest) { r.Name = "A" }, wantErr: true},
		{name: "password too short", mutate: func(r *RegisterRequest) { r.Password = "Sh0rt!pw" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)
			err := ValidateRegister(req)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestValidateRegister_PasswordComplexity(t *testing.T) {
	req := require.New(t)
	base := RegisterRequest{Email: "alice@corp.example", Name: "Alice"}

	// Long enough but missing a character class each time.
	for _, password := range []string{
		"alllowercase!234",  // no upper
		"ALLUPPERCASE!234",  // no lower
		"NoDigitsHerePlz!!", // no number
		"NoSpecials12345a",  // no symbol
	} {
		r := base
		r.Password = password
		req.ErrorIs(ValidateRegister(r), errors.ErrInvalidPassword, password)
	}

	r := base
	r.Password = "Curr3nt!Passw0rd"
	req.NoError(ValidateRegister(r))
}

func TestValidateLogin(t *testing.T) {
	req := require.New(t)

	req.NoError(ValidateLogin(LoginRequest{Email: "alice@corp.example", Password: "anything"}))
	req.Error(ValidateLogin(LoginRequest{Email: "", Password: "anything"}))
	req.Error(ValidateLogin(LoginRequest{Email: "alice@corp.example", Password: ""}))
}
