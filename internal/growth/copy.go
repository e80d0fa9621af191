package growth

import "fmt"

// GenerateCopy renders template copy for the chosen experiment.
//
// Email experiments get a subject line and short body; every other channel
// gets a one-line pitch.
func GenerateCopy(business BusinessProfile, goal GrowthGoal, chosen ScoredExperiment) string {
	exp := chosen.Experiment

	if exp.Channel == "email" {
		return fmt.Sprintf("Subject: A thank-you from %s\n\n"+
			"Hi there,\n\n"+
			"We're testing a new campaign called '%s' to help us %s. "+
			"We'd love for you to be part of it.\n\n"+
			"Thanks for being part of the %s community,\n"+
			"%s",
			business.Name, exp.Name, goal.Objective, business.Name, business.Name)
	}

	return fmt.Sprintf("%s – a %s experiment designed to help %s %s.",
		exp.Name, exp.Channel, business.Name, goal.Objective)
}
