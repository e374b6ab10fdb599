package model

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// TripRecord is one row of the schedule snapshot as delivered by a loader.
type TripRecord struct {
	TripID    string `csv:"trip_id" json:"trip_id" validate:"required"`
	RouteID   string `csv:"route_id" json:"route_id" validate:"required"`
	Direction string `csv:"direction_id" json:"direction_id,omitempty"`
	BlockID   string `csv:"block_id" json:"block_id,omitempty"`
	Arrival   string `csv:"arrival_time" json:"arrival_time" validate:"required"`
	Departure string `csv:"departure_time" json:"departure_time" validate:"required"`
	BayID     string `csv:"bay_id" json:"bay_id,omitempty"`
}

// BayRecord is one row of the bay inventory snapshot. Numeric columns are
// kept as text so that malformed values surface as DataErrors naming the bay.
type BayRecord struct {
	BayID         string `csv:"bay_id" json:"bay_id" validate:"required"`
	Capacity      string `csv:"capacity" json:"capacity,omitempty" validate:"omitempty,number"`
	Routes        string `csv:"routes" json:"routes,omitempty"`
	ClusterID     string `csv:"cluster_id" json:"cluster_id,omitempty"`
	X             string `csv:"x" json:"x,omitempty" validate:"omitempty,numeric"`
	Y             string `csv:"y" json:"y,omitempty" validate:"omitempty,numeric"`
	Lat           string `csv:"lat" json:"lat,omitempty" validate:"omitempty,latitude"`
	Lon           string `csv:"lon" json:"lon,omitempty" validate:"omitempty,longitude"`
	BufferMinutes string `csv:"buffer_minutes" json:"buffer_minutes,omitempty" validate:"omitempty,numeric"`
}

// ClusterRecord declares that a route belongs with a cluster of bays, or
// with one explicit bay.
type ClusterRecord struct {
	RouteID   string `csv:"route_id" json:"route_id" validate:"required"`
	ClusterID string `csv:"cluster_id" json:"cluster_id,omitempty" validate:"required_without=BayID"`
	BayID     string `csv:"bay_id" json:"bay_id,omitempty" validate:"required_without=ClusterID"`
}

var validate = validator.New()

// checkRecord runs the struct tags and converts the first failure into a
// DataError for the given record label.
func checkRecord(label string, rec any) error {
	err := validate.Struct(rec)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return dataErr(label, fe.Field(), fmt.Errorf("failed %q check", fe.Tag()))
	}
	return dataErr(label, "", err)
}

func tripLabel(i int, r TripRecord) string {
	if r.TripID == "" {
		return fmt.Sprintf("trip row %d", i+1)
	}
	return "trip " + r.TripID
}

func bayLabel(i int, r BayRecord) string {
	if r.BayID == "" {
		return fmt.Sprintf("bay row %d", i+1)
	}
	return "bay " + r.BayID
}

func clusterLabel(i int, r ClusterRecord) string {
	return fmt.Sprintf("cluster row %d (route %s)", i+1, r.RouteID)
}
