package services

import (
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"xpose-triage/internal/domain/models"
)

const earthRadiusMeters = 6371000.0

// districtFile is the on-disk layout of the district table
type districtFile struct {
	Districts []models.District `yaml:"districts"`
}

// DistrictIndex is an immutable lookup table of district centroids
type DistrictIndex struct {
	byKey     map[string]models.District
	districts []models.District
}

// LoadDistrictIndex reads a district table from a YAML file
func LoadDistrictIndex(path string) (*DistrictIndex, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read districts file: %w", err)
	}

	var f districtFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse districts file: %w", err)
	}
	return NewDistrictIndex(f.Districts), nil
}

// NewDistrictIndex builds an index. Later entries win on duplicate keys.
func NewDistrictIndex(districts []models.District) *DistrictIndex {
	idx := &DistrictIndex{byKey: make(map[string]models.District, len(districts))}
	pos := make(map[string]int, len(districts))
	for _, d := range districts {
		key := districtKey(d.State, d.Name)
		if i, seen := pos[key]; seen {
			idx.districts[i] = d
		} else {
			pos[key] = len(idx.districts)
			idx.districts = append(idx.districts, d)
		}
		idx.byKey[key] = d
	}
	return idx
}

func districtKey(state, district string) string {
	return strings.ToLower(strings.TrimSpace(state)) + "-" + strings.ToLower(strings.TrimSpace(district))
}

// Len returns the number of districts
func (idx *DistrictIndex) Len() int {
	return len(idx.districts)
}

// Lookup finds a district by state and name, ignoring case
func (idx *DistrictIndex) Lookup(state, district string) (models.District, error) {
	d, ok := idx.byKey[districtKey(state, district)]
	if !ok {
		return models.District{}, fmt.Errorf("district %q in %q: %w", district, state, models.ErrNotFound)
	}
	return d, nil
}

// States returns every state, sorted and title-cased
func (idx *DistrictIndex) States() []string {
	title := cases.Title(language.English)
	seen := make(map[string]struct{})
	var out []string
	for _, d := range idx.districts {
		name := title.String(strings.TrimSpace(d.State))
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Districts returns the districts of a state, sorted and title-cased. An
// unknown state yields an empty list.
func (idx *DistrictIndex) Districts(state string) []string {
	title := cases.Title(language.English)
	want := strings.ToLower(strings.TrimSpace(state))
	out := []string{}
	for _, d := range idx.districts {
		if strings.ToLower(strings.TrimSpace(d.State)) == want {
			out = append(out, title.String(strings.TrimSpace(d.Name)))
		}
	}
	sort.Strings(out)
	return out
}

// Nearest returns the district whose centroid is closest to the point and
// the distance to it in meters
func (idx *DistrictIndex) Nearest(lat, lng float64) (models.District, float64, error) {
	if len(idx.districts) == 0 {
		return models.District{}, 0, fmt.Errorf("district index is empty: %w", models.ErrNotFound)
	}

	best := idx.districts[0]
	bestDist := Haversine(lat, lng, best.Latitude, best.Longitude)
	for _, d := range idx.districts[1:] {
		if dist := Haversine(lat, lng, d.Latitude, d.Longitude); dist < bestDist {
			best, bestDist = d, dist
		}
	}
	return best, bestDist, nil
}

// Haversine returns the great-circle distance between two points in meters
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLng := (lng2 - lng1) * rad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(a)))
}
