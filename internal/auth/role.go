package auth

import (
	"context"
	"fmt"
)

// Role is the closed set of actor kinds. The zero value is not a valid role.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleShop     Role = "shop"
	RoleAdmin    Role = "admin"
)

func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleCustomer, RoleShop, RoleAdmin:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Principal is the authenticated actor of a request.
// ShopID is only set for shop principals whose shop has been registered.
type Principal struct {
	UserID int64
	Role   Role
	ShopID int64
}

func (p Principal) IsAdmin() bool    { return p.Role == RoleAdmin }
func (p Principal) IsCustomer() bool { return p.Role == RoleCustomer }

// OwnsShop reports whether p is the shop account for shopID.
func (p Principal) OwnsShop(shopID int64) bool {
	return p.Role == RoleShop && p.ShopID != 0 && p.ShopID == shopID
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
