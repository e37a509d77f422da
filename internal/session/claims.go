package session

import (
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// OrgClaim es la referencia desnormalizada a la organización que viaja
// en el session token.
type OrgClaim struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// Claims es el payload del session token: sub = user id, staff flag y
// organización opcional. La validez se prueba criptográficamente más el
// chequeo de expiry, no con un lookup (el token no se persiste).
type Claims struct {
	Staff bool      `json:"staff"`
	Org   *OrgClaim `json:"org,omitempty"`
	jwtv5.RegisteredClaims
}

// sign firma los claims con HS256 usando el secret derivado del environment.
func sign(claims *Claims, secret []byte) (string, error) {
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	tk.Header["typ"] = "JWT"
	return tk.SignedString(secret)
}

// parse verifica firma y expiry y devuelve los claims.
// Solo acepta HS256: un token firmado con otro método falla.
func parse(raw string, secret []byte, issuer string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwtv5.ParseWithClaims(raw, claims, func(t *jwtv5.Token) (any, error) {
		return secret, nil
	},
		jwtv5.WithValidMethods([]string{jwtv5.SigningMethodHS256.Alg()}),
		jwtv5.WithIssuer(issuer),
		jwtv5.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// nowFunc permite fijar el reloj en tests.
var nowFunc = func() time.Time { return time.Now().UTC() }
