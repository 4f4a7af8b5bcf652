package middleware

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/Dosada05/padel-live/models"
	"github.com/golang-jwt/jwt/v4"
)

const (
	jwtClaimUserID = "user_id"
	jwtClaimRole   = "role"
)

var errNoClaims = errors.New("user claims not found in context")

func claimsFromContext(ctx context.Context) (jwt.MapClaims, error) {
	claims, ok := ctx.Value(userContextKey).(jwt.MapClaims)
	if !ok {
		return nil, errNoClaims
	}
	return claims, nil
}

// GetUserIDFromContext возвращает id судьи или организатора из токена.
// Сервис учетных записей кладет user_id числом, старые токены - строкой.
func GetUserIDFromContext(ctx context.Context) (int, error) {
	claims, err := claimsFromContext(ctx)
	if err != nil {
		return 0, err
	}

	var userID int
	switch v := claims[jwtClaimUserID].(type) {
	case float64:
		if v != float64(int(v)) {
			return 0, fmt.Errorf("'%s' claim is not an integer: %f", jwtClaimUserID, v)
		}
		userID = int(v)
	case string:
		userID, err = strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid '%s' claim %q: %w", jwtClaimUserID, v, err)
		}
	case nil:
		return 0, fmt.Errorf("missing '%s' claim in token", jwtClaimUserID)
	default:
		return 0, fmt.Errorf("invalid type for '%s' claim: %T", jwtClaimUserID, v)
	}

	if userID <= 0 {
		return 0, fmt.Errorf("invalid user ID value in '%s' claim: %d", jwtClaimUserID, userID)
	}
	return userID, nil
}

// GetUserRoleFromContext возвращает роль из токена. Неизвестные роли отклоняются.
func GetUserRoleFromContext(ctx context.Context) (models.UserRole, error) {
	claims, err := claimsFromContext(ctx)
	if err != nil {
		return "", err
	}

	roleStr, ok := claims[jwtClaimRole].(string)
	if !ok {
		return "", fmt.Errorf("missing or non-string '%s' claim", jwtClaimRole)
	}

	role := models.UserRole(roleStr)
	switch role {
	case models.RoleAdmin, models.RoleOrganizer, models.RoleReferee:
		return role, nil
	default:
		return "", fmt.Errorf("invalid role value in claim: %q", roleStr)
	}
}
