package workflow

import (
	"context"

	"credence/internal/rules"
)

// evaluateMilestones runs once per step-completion cycle: every milestone not
// already on the tracker is checked against all of its configured requirement
// categories conjunctively, and first satisfaction appends it permanently.
func (e *Engine) evaluateMilestones(ctx context.Context, milestones []Milestone, tracker *Tracker) {
	for _, milestone := range milestones {
		if tracker.HasMilestone(milestone.ID) {
			continue
		}
		if !e.milestoneSatisfied(milestone, tracker) {
			continue
		}
		tracker.Milestones = append(tracker.Milestones, AchievedMilestone{
			MilestoneID: milestone.ID,
			Name:        milestone.Name,
			AchievedAt:  e.now(),
		})
		e.logger.Info("milestone achieved",
			"tracker_id", tracker.ID,
			"milestone_id", milestone.ID,
		)
		e.signals.MilestoneAchieved(ctx, tracker, milestone)
	}
}

func (e *Engine) milestoneSatisfied(milestone Milestone, tracker *Tracker) bool {
	req := milestone.Requirements

	if req.MinProgressPercentage != nil && tracker.ProgressPercentage < *req.MinProgressPercentage {
		return false
	}

	if len(req.RequiredSteps) > 0 {
		history := tracker.CompletedStepNames()
		for _, name := range req.RequiredSteps {
			if _, done := history[name]; !done {
				return false
			}
		}
	}

	for _, field := range req.UserDataFields {
		value, found := rules.ResolvePath(tracker.UserData, field)
		if !found || value == nil || value == "" {
			return false
		}
	}

	if len(req.CustomConditions) > 0 {
		inputs := rules.Inputs{UserData: tracker.UserData}
		for _, cond := range req.CustomConditions {
			if !e.evaluator.Evaluate(cond, inputs).Met {
				return false
			}
		}
	}

	return true
}
