package repository

import "time"

// LinkListFilter 查询链接列表的过滤条件
type LinkListFilter struct {
	Page        int
	PageSize    int
	Status      string // all/active/inactive/expired
	Search      string
	Role        string
	CreatedBy   uint
	OrderBy     string // 仅允许白名单内的列
	OrderDesc   bool
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// AccessLogListFilter 查询访问日志列表的过滤条件
type AccessLogListFilter struct {
	Page        int
	PageSize    int
	LinkID      uint
	Status      string
	Search      string
	SourceIP    string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// UserListFilter 查询用户列表的过滤条件
type UserListFilter struct {
	Page          int
	PageSize      int
	Keyword       string
	Role          string
	Status        string
	OnlyTemporary bool
}
