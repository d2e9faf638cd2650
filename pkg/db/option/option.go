package option

import "gorm.io/gorm"

// QueryOption narrows a generic store query.
type QueryOption interface {
	Apply(db *gorm.DB) *gorm.DB
}

type QueryFunc func(db *gorm.DB) *gorm.DB

func (f QueryFunc) Apply(db *gorm.DB) *gorm.DB { return f(db) }

func Where(query any, args ...any) QueryOption {
	return QueryFunc(func(db *gorm.DB) *gorm.DB { return db.Where(query, args...) })
}

func OrderBy(order string) QueryOption {
	return QueryFunc(func(db *gorm.DB) *gorm.DB { return db.Order(order) })
}

func Limit(n int) QueryOption {
	return QueryFunc(func(db *gorm.DB) *gorm.DB {
		if n <= 0 {
			return db
		}
		return db.Limit(n)
	})
}
