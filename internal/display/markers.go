package display

import (
	"strconv"

	"github.com/civicdesk/triage-service/internal/domain"
)

// LatLng is a map coordinate.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Marker is one map pin.
type Marker struct {
	ReportID    string                `json:"report_id"`
	Title       string                `json:"title"`
	Position    LatLng                `json:"position"`
	Status      domain.ReportStatus   `json:"status"`
	StatusLabel string                `json:"status_label"`
	Priority    domain.ReportPriority `json:"priority"`
	Category    string                `json:"category"`
	Color       string                `json:"color"`
	Location    string                `json:"location"`
	CreatedAt   string                `json:"created_at"`
}

// MarkersFor builds markers for reports that have coordinates, keeping input order.
func MarkersFor(reports []domain.Report) []Marker {
	markers := make([]Marker, 0, len(reports))
	for i := range reports {
		r := &reports[i]
		if !r.HasCoordinates() {
			continue
		}
		markers = append(markers, Marker{
			ReportID:    r.ID,
			Title:       r.Title,
			Position:    LatLng{Lat: *r.Latitude, Lng: *r.Longitude},
			Status:      r.Status,
			StatusLabel: StatusLabel(r.Status),
			Priority:    r.Priority,
			Category:    r.Category,
			Color:       StatusColor(r.Status),
			Location:    LocationLabel(r),
			CreatedAt:   FormatDate(r.CreatedAt),
		})
	}
	return markers
}

// MapCenter is the mean marker position, or DefaultCenter when there are none.
func MapCenter(markers []Marker) LatLng {
	if len(markers) == 0 {
		return DefaultCenter
	}
	var sum LatLng
	for _, m := range markers {
		sum.Lat += m.Position.Lat
		sum.Lng += m.Position.Lng
	}
	n := float64(len(markers))
	return LatLng{Lat: sum.Lat / n, Lng: sum.Lng / n}
}

func formatCoordinates(lat, lng float64) string {
	return strconv.FormatFloat(lat, 'f', 4, 64) + ", " + strconv.FormatFloat(lng, 'f', 4, 64)
}
