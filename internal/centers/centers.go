// Package centers lists the drop-off collection centers.
package centers

import (
	"sort"
	"strings"
)

// Center is a physical e-waste collection point.
type Center struct {
	ID         int     `json:"id"`
	Name       string  `json:"name"`
	Address    string  `json:"address"`
	City       string  `json:"city"`
	Phone      string  `json:"phone"`
	DistanceKm float64 `json:"distance_km"`
	Timings    string  `json:"timings"`
	Rating     float64 `json:"rating"`
}

var directory = []Center{
	{ID: 1, Name: "Green E-Waste Hub", Address: "123 Main Street", City: "Delhi", Phone: "011-1234-5678", DistanceKm: 2.5, Timings: "9:00 AM - 6:00 PM", Rating: 4.5},
	{ID: 2, Name: "EcoRecycle Center", Address: "456 Park Avenue", City: "Mumbai", Phone: "022-9876-5432", DistanceKm: 3.8, Timings: "10:00 AM - 7:00 PM", Rating: 4.7},
	{ID: 3, Name: "Tech Waste Solutions", Address: "789 Tech Park", City: "Bangalore", Phone: "080-5555-6666", DistanceKm: 5.2, Timings: "8:00 AM - 8:00 PM", Rating: 4.3},
	{ID: 4, Name: "Digital Recycling Point", Address: "321 Green Road", City: "Pune", Phone: "020-7777-8888", DistanceKm: 6.1, Timings: "9:00 AM - 5:00 PM", Rating: 4.6},
}

// List returns the centers nearest first, optionally restricted to a city
// (case-insensitive). The result is a copy.
func List(city string) []Center {
	city = strings.TrimSpace(city)
	out := make([]Center, 0, len(directory))
	for _, c := range directory {
		if city == "" || strings.EqualFold(c.City, city) {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DistanceKm < out[j].DistanceKm
	})
	return out
}
