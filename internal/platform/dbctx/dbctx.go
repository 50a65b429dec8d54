// Package dbctx carries a context.Context alongside the *gorm.DB that should
// be used for the current call, so a repo method invoked inside a
// transaction uses the transaction's handle instead of the package-level
// pool.
package dbctx

import (
	"context"

	"gorm.io/gorm"
)

type Context struct {
	Ctx context.Context
	Tx  *gorm.DB
}

// DB returns the transaction handle if set, otherwise falls back to base
// bound to the context.
func (c Context) DB(base *gorm.DB) *gorm.DB {
	if c.Tx != nil {
		return c.Tx
	}
	return base.WithContext(c.Ctx)
}
