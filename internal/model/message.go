// Package model defines the configuration tree and the messages the robot
// exchanges with the outside world.
package model

// IMUReading is the orientation part of a telemetry message.
type IMUReading struct {
	Yaw float64 `json:"yaw"`
}

// Telemetry is the state snapshot published by the robot.
type Telemetry struct {
	Speed     float64    `json:"speed"`    // cm/s
	Distance  float64    `json:"distance"` // cm since start
	IMU       IMUReading `json:"imu"`
	Range     float64    `json:"ultra_cm"` // -1 when no echo
	State     string     `json:"state"`
	Timestamp string     `json:"ts,omitempty"`
}

// Diag is published once per connection on the diagnostics topic.
type Diag struct {
	Hello string `json:"hello"`
}

