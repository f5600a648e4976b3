package menu

import "time"

const (
	maxTitleLength           = 225
	maxMenuDescriptionLength = 350
	maxItemNameLength        = 225
	maxItemDescriptionLength = 225
)

// Menu is a QR-published menu owned by one user.
type Menu struct {
	ID          string
	OwnerID     string
	Title       string
	Description string
	Available   bool
	QRKey       string
	CreatedAt   time.Time
}

// Item is a priced entry of a menu. Price is in the smallest currency unit.
type Item struct {
	ID          string
	MenuID      string
	Name        string
	Description string
	Price       int64
	Available   bool
	CreatedAt   time.Time
}

// CreateInput captures the fields of a new menu.
type CreateInput struct {
	Title       string
	Description string
}

// MenuPatch is a partial menu update; nil fields are left unchanged.
type MenuPatch struct {
	Title       *string
	Description *string
	Available   *bool
}

// ItemInput captures the fields of a new item.
type ItemInput struct {
	Name        string
	Description string
	Price       *int64
	Available   *bool
}

// ItemPatch is a partial item update; nil fields are left unchanged.
type ItemPatch struct {
	Name        *string
	Description *string
	Price       *int64
	Available   *bool
}

// CanModify reports whether userID may change m or its items.
func CanModify(userID string, m Menu) bool {
	return userID != "" && m.OwnerID == userID
}
