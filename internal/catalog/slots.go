package catalog

// Slot is one fixed-length bookable interval of the business day. Slots are
// identified by their start time ("HH:MM"); they are values, never persisted.
type Slot struct {
	Start string `json:"start"`
	End   string `json:"end"`
	Label string `json:"label"`
}

// Timeslots is the daily schedule. The 12:00 hour is kept clear on purpose.
var Timeslots = []Slot{
	{Start: "07:00", End: "08:00", Label: "07:00 - 08:00"},
	{Start: "08:00", End: "09:00", Label: "08:00 - 09:00"},
	{Start: "09:00", End: "10:00", Label: "09:00 - 10:00"},
	{Start: "10:00", End: "11:00", Label: "10:00 - 11:00"},
	{Start: "11:00", End: "12:00", Label: "11:00 - 12:00"},
	{Start: "13:00", End: "14:00", Label: "13:00 - 14:00"},
	{Start: "14:00", End: "15:00", Label: "14:00 - 15:00"},
	{Start: "15:00", End: "16:00", Label: "15:00 - 16:00"},
	{Start: "16:00", End: "17:00", Label: "16:00 - 17:00"},
	{Start: "17:00", End: "18:00", Label: "17:00 - 18:00"},
	{Start: "18:00", End: "19:00", Label: "18:00 - 19:00"},
	{Start: "19:00", End: "20:00", Label: "19:00 - 20:00"},
}

// Amenities is the fixed amenity catalog. Enrichment always takes a prefix of
// this list, so the order is part of the contract.
var Amenities = []string{"ac", "parking", "shower", "lockers", "mat"}

// StudioImages are placeholder studio photos used for display enrichment.
var StudioImages = []string{
	"https://images.unsplash.com/photo-1518611012118-696072aa579a?auto=format&fit=crop&q=80&w=1000",
	"https://images.unsplash.com/photo-1575052814086-f385e2e2ad1b?auto=format&fit=crop&q=80&w=1000",
	"https://images.unsplash.com/photo-1599901860904-17e6ed7083a0?auto=format&fit=crop&q=80&w=1000",
	"https://images.unsplash.com/photo-1552196563-55cd4e45efb3?auto=format&fit=crop&q=80&w=1000",
}

// Find returns the slot with the given start and end times, or false when no
// catalog entry matches exactly.
func Find(start, end string) (Slot, bool) {
	for _, s := range Timeslots {
		if s.Start == start && s.End == end {
			return s, true
		}
	}
	return Slot{}, false
}

// Index returns the 0-based catalog position of the slot starting at start,
// or -1 when the start time is not in the catalog.
func Index(start string) int {
	for i, s := range Timeslots {
		if s.Start == start {
			return i
		}
	}
	return -1
}
