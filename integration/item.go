package integration

// ItemType labels the kind of CRM object an Item was built from.
type ItemType string

const (
	ItemTypeContact ItemType = "Contact"
	ItemTypeCompany ItemType = "Company"
	ItemTypeDeal    ItemType = "Deal"
)

// Item is the normalized record returned to the application regardless of
// which remote collection it came from.
type Item struct {
	// ID is the remote id suffixed with the type label, unique across collections.
	ID   string   `json:"id"`
	Name string   `json:"name"`
	Type ItemType `json:"type"`

	// Parent fields support hierarchical sources; HubSpot objects leave them nil.
	ParentID         *string `json:"parent_id"`
	ParentPathOrName *string `json:"parent_path_or_name"`
}

// ItemID builds the globally unique id of a remote object.
func ItemID(remoteID string, itemType ItemType) string {
	return remoteID + "_" + string(itemType)
}
