package models

import "time"

// Station is a police station in the local directory
type Station struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Address   string    `json:"address,omitempty" db:"address"`
	Latitude  float64   `json:"latitude" db:"latitude"`
	Longitude float64   `json:"longitude" db:"longitude"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Officer is an authority account linked to a station
type Officer struct {
	ID        int64  `json:"id" db:"id"`
	Name      string `json:"name" db:"name"`
	Email     string `json:"email,omitempty" db:"email"`
	StationID int64  `json:"station_id" db:"station_id"`
}

// Place is a single result from a nearby search
type Place struct {
	PlaceID   string  `json:"place_id,omitempty"`
	Name      string  `json:"name"`
	Address   string  `json:"address"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// District is a named administrative district with its centroid
type District struct {
	State     string  `json:"state" yaml:"state"`
	Name      string  `json:"district" yaml:"district"`
	Latitude  float64 `json:"latitude" yaml:"lat"`
	Longitude float64 `json:"longitude" yaml:"lng"`
}

// AssignmentResult is returned after an officer was assigned to a report
type AssignmentResult struct {
	ReportID    string `json:"report_id"`
	OfficerID   int64  `json:"officer_id"`
	OfficerName string `json:"officer_name,omitempty"`
	StationID   int64  `json:"station_id"`
	StationName string `json:"station_name"`
}
