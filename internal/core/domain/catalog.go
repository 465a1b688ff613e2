// internal/core/domain/catalog.go
package domain

import (
	"bytes"
	"strconv"

	"github.com/shopspring/decimal"
)

// Commodity is a marketplace listing
type Commodity struct {
	ID                   ProductID       `json:"id"`
	CommodityName        string          `json:"commodityName"`
	CommodityDescription string          `json:"commodityDescription"`
	CommodityAvatar      string          `json:"commodityAvatar"`
	Price                decimal.Decimal `json:"price"`
	CommodityInventory   int             `json:"commodityInventory"`
	ViewNum              int             `json:"viewNum"`
	FavourNum            int             `json:"favourNum"`
	CommodityTypeID      int64           `json:"commodityTypeId"`
	CommodityTypeName    string          `json:"commodityTypeName,omitempty"`
	Degree               string          `json:"degree"`
	IsListed             int             `json:"isListed"`
	AdminID              int64           `json:"adminId"`
	CreateTime           string          `json:"createTime"`
}

// Ref converts a listing into what the cart needs to add it locally
func (c Commodity) Ref() ProductRef {
	stock := c.CommodityInventory
	return ProductRef{
		ProductID:  c.ID,
		Name:       c.CommodityName,
		Avatar:     c.CommodityAvatar,
		UnitPrice:  c.Price,
		StockLimit: &stock,
	}
}

// CommodityQuery filters and pages the commodity list
type CommodityQuery struct {
	Current         int    `json:"current,omitempty"`
	PageSize        int    `json:"pageSize,omitempty"`
	CommodityName   string `json:"commodityName,omitempty"`
	CommodityTypeID int64  `json:"commodityTypeId,omitempty"`
	IsListed        *int   `json:"isListed,omitempty"`
	SortField       string `json:"sortField,omitempty"`
	SortOrder       string `json:"sortOrder,omitempty"`
}

// PostUser is the author block embedded in a post
type PostUser struct {
	ID          int64  `json:"id"`
	UserName    string `json:"userName"`
	UserAvatar  string `json:"userAvatar"`
	UserProfile string `json:"userProfile,omitempty"`
	UserRole    string `json:"userRole,omitempty"`
}

// Post is a forum post
type Post struct {
	ID         int64     `json:"id"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	TagList    []string  `json:"tagList,omitempty"`
	ThumbNum   int       `json:"thumbNum"`
	FavourNum  int       `json:"favourNum"`
	UserID     int64     `json:"userId"`
	User       *PostUser `json:"user,omitempty"`
	CreateTime string    `json:"createTime"`
	HasThumb   bool      `json:"hasThumb,omitempty"`
	HasFavour  bool      `json:"hasFavour,omitempty"`
}

// PostQuery filters and pages the post list
type PostQuery struct {
	Current    int      `json:"current,omitempty"`
	PageSize   int      `json:"pageSize,omitempty"`
	SearchText string   `json:"searchText,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	SortField  string   `json:"sortField,omitempty"`
	SortOrder  string   `json:"sortOrder,omitempty"`
}

// PageResult is one page of a paginated list
type PageResult[T any] struct {
	Records  []T   `json:"records"`
	Total    Count `json:"total"`
	Current  int   `json:"current"`
	PageSize int   `json:"pageSize"`
}

// User is the signed-in account
type User struct {
	ID          int64  `json:"id"`
	UserAccount string `json:"userAccount"`
	UserName    string `json:"userName"`
	UserAvatar  string `json:"userAvatar"`
	UserRole    string `json:"userRole"`
}

// Count is an integer the backend sometimes encodes as a JSON string
type Count int64

// UnmarshalJSON accepts both 42 and "42"
func (c *Count) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "null" {
		*c = 0
		return nil
	}
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return err
	}
	*c = Count(n)
	return nil
}
