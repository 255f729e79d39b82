package model

// Collection is the endpoint collection of one site as returned by the
// controller's endpoints API.
type Collection struct {
	// TotalItemsCount is the number of endpoints the controller reports for the site.
	TotalItemsCount int `json:"totalItemsCount"`

	// Entries holds the endpoint records in the order the controller returned them.
	Entries []*Record `json:"entries"`
}

// NewEmptyCollection returns a collection with no entries.
// A site without endpoints is a valid result, not an error.
func NewEmptyCollection() *Collection {
	return &Collection{
		TotalItemsCount: 0,
		Entries:         []*Record{},
	}
}

// IsEmpty reports whether the collection holds no entries.
func (c *Collection) IsEmpty() bool {
	return c == nil || len(c.Entries) == 0
}

// Len returns the number of entries held.
func (c *Collection) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Entries)
}
