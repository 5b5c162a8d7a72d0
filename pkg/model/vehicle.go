package model

import "time"

type Vehicle struct {
	ID        string  `json:"id" bson:"_id,omitempty"`
	HostID    string  `json:"host_id" bson:"host_id"`
	Make      string  `json:"make" bson:"make"`
	Model     string  `json:"model" bson:"model"`
	Year      int     `json:"year" bson:"year"`
	DailyRate float64 `json:"daily_rate" bson:"daily_rate"`
}

func (v *Vehicle) Descriptor() VehicleDescriptor {
	return VehicleDescriptor{Make: v.Make, Model: v.Model, Year: v.Year}
}

// Party is a renter or host as known to the directory.
type Party struct {
	ID          string `json:"id" bson:"_id"`
	DisplayName string `json:"display_name" bson:"display_name"`
}

// VehicleLock is an advisory lock held while a vehicle's calendar is checked
// and written. The store reaps expired locks through a TTL index.
type VehicleLock struct {
	ID        string    `bson:"_id" json:"id"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

func VehicleLockID(vehicleID string) string {
	return "vehicle_lock_" + vehicleID
}
