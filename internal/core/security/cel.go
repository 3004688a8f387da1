package security

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"

	appctx "stockcore/internal/core/context"
)

// DefaultRule grants admins everything and everyone else what their token lists.
const DefaultRule = `user.is_admin || permission in user.permissions`

// CELChecker evaluates one CEL expression per permission against the request's
// user context. Available variables: user (id, roles, permissions, is_admin),
// permission and actor.
type CELChecker struct {
	programs map[Permission]cel.Program
	fallback cel.Program
}

// NewCELChecker compiles rules. Permissions without a rule use DefaultRule.
func NewCELChecker(rules map[Permission]string) (*CELChecker, error) {
	env, err := cel.NewEnv(
		cel.Variable("user", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("permission", cel.StringType),
		cel.Variable("actor", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("create cel env: %w", err)
	}

	compile := func(src string) (cel.Program, error) {
		ast, iss := env.Compile(src)
		if iss.Err() != nil {
			return nil, iss.Err()
		}
		return env.Program(ast)
	}

	fallback, err := compile(DefaultRule)
	if err != nil {
		return nil, fmt.Errorf("compile default rule: %w", err)
	}
	c := &CELChecker{programs: make(map[Permission]cel.Program, len(rules)), fallback: fallback}
	for perm, src := range rules {
		prg, err := compile(src)
		if err != nil {
			return nil, fmt.Errorf("compile rule for %s: %w", perm, err)
		}
		c.programs[perm] = prg
	}
	return c, nil
}

// CanUser implements Checker. Attributes are only taken from the request user
// when it is the acting user.
func (c *CELChecker) CanUser(ctx context.Context, actorID string, perm Permission) (bool, error) {
	user := map[string]any{
		"id":          actorID,
		"roles":       []string{},
		"permissions": []string{},
		"is_admin":    false,
	}
	if u := appctx.GetUser(ctx); u != nil && u.UserID == actorID {
		user["roles"] = append([]string{}, u.Roles...)
		user["permissions"] = append([]string{}, u.Permissions...)
		user["is_admin"] = u.IsAdmin
	}

	prg, ok := c.programs[perm]
	if !ok {
		prg = c.fallback
	}
	out, _, err := prg.ContextEval(ctx, map[string]any{
		"user":       user,
		"permission": string(perm),
		"actor":      actorID,
	})
	if err != nil {
		return false, fmt.Errorf("evaluate rule for %s: %w", perm, err)
	}
	allowed, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("rule for %s returned %T, want bool", perm, out.Value())
	}
	return allowed, nil
}

var _ Checker = (*CELChecker)(nil)
