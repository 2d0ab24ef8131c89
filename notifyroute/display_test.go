package notifyroute

import (
	"testing"

	"github.com/peterldowns/testy/check"
)

func TestDisplay(t *testing.T) {
	tests := []struct {
		name     string
		typ      Type
		priority int
		icon     string
	}{
		{"new bid", TypeNewBid, 1, "gavel"},
		{"alias of new bid", "bid_received", 1, "gavel"},
		{"rejected", TypeBidRejected, 2, "x-circle"},
		{"chat alias", "new_message", 3, "message-circle"},
		{"collection", TypeCollectionUpdate, 4, "package"},
		{"general", TypeGeneral, 5, "bell"},
		{"unknown falls back to general", Type("weather_alert"), 5, "bell"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Display(tt.typ)
			check.Equal(t, tt.priority, got.Priority)
			check.Equal(t, tt.icon, got.Icon)
			check.NotEqual(t, "", got.ActionText)
		})
	}
}

func TestEveryRoutedTypeHasDisplay(t *testing.T) {
	for typ := range routes {
		_, ok := displays[typ]
		check.True(t, ok)
	}
}
