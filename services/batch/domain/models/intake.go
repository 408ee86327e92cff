package models

import "time"

// Intake is the producer's submission that creates a batch.
// Location and OccurredAt default to the producer location and the creation time.
type Intake struct {
	Producer   Producer
	Product    Product
	Location   string
	OccurredAt time.Time
	Attributes map[string]string
	Details    ProducerDetails
}

// FirstStage returns the producer stage input described by the intake.
func (in Intake) FirstStage() StageInput {
	loc := in.Location
	if loc == "" {
		loc = in.Producer.Location
	}
	return StageInput{
		Actor:      in.Producer.Name,
		OccurredAt: in.OccurredAt,
		Location:   loc,
		Attributes: in.Attributes,
		Details:    in.Details,
	}
}
