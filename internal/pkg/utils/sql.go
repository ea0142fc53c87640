package utils

import "database/sql"

// ToSQLStr creates new sql str instance
func ToSQLStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// FromSQLStr returns string from sql.NullString
func FromSQLStr(sqlStr sql.NullString) string {
	if sqlStr.Valid {
		return sqlStr.String
	}
	return ""
}

// ToSQLInt64 creates new sql int instance, negative value means unknown
func ToSQLInt64(i int64) sql.NullInt64 {
	return sql.NullInt64{Int64: i, Valid: i >= 0}
}

// ToSQLFloat64 creates new sql float instance from optional value
func ToSQLFloat64(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

// FromSQLFloat64 returns optional float from sql.NullFloat64
func FromSQLFloat64(sqlData sql.NullFloat64) *float64 {
	if sqlData.Valid {
		res := sqlData.Float64
		return &res
	}
	return nil
}
