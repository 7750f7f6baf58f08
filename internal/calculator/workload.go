package calculator

import (
	"fmt"
	"sort"
	"time"

	"github.com/brainbox-app/brainbox/internal/models"
)

// TaskLoad is the study effort one open task needs per day.
type TaskLoad struct {
	TaskID   string
	Subject  string
	Deadline models.Date
	DaysLeft int     // Including today
	Hours    float64 // Remaining estimated hours
	PerDay   float64
}

// Workload is the daily study plan across all open tasks.
type Workload struct {
	Tasks   []TaskLoad
	Overdue []TaskLoad
	// Today is the hours due today summed over every task still in time.
	Today float64
}

// CalculateWorkload spreads each open task's estimated hours evenly over the
// days left until its deadline.
//
// Algorithm:
// - Completed tasks and tasks without an estimate are skipped
// - days_left = deadline - today + 1, so a task due today gets the whole estimate
// - per_day = hours / days_left
// - A deadline before today is overdue: reported separately with PerDay = hours
//
// Tasks are ordered by deadline, then priority (High first).
func CalculateWorkload(tasks []*models.Task, today time.Time) (Workload, error) {
	var w Workload
	day := truncateDay(today)

	for _, task := range tasks {
		if task.IsCompleted || task.EstimatedHours == nil {
			continue
		}
		deadline, err := task.Deadline.Time()
		if err != nil {
			return Workload{}, fmt.Errorf("task %s: invalid deadline: %w", task.ID, err)
		}

		load := TaskLoad{
			TaskID:   task.ID,
			Subject:  task.Subject,
			Deadline: task.Deadline,
			Hours:    *task.EstimatedHours,
			DaysLeft: int(truncateDay(deadline).Sub(day).Hours()/24) + 1,
		}
		if load.DaysLeft <= 0 {
			load.DaysLeft = 0
			load.PerDay = load.Hours
			w.Overdue = append(w.Overdue, load)
			continue
		}
		load.PerDay = load.Hours / float64(load.DaysLeft)
		w.Today += load.PerDay
		w.Tasks = append(w.Tasks, load)
	}

	rank := make(map[string]int, len(tasks))
	for _, task := range tasks {
		rank[task.ID] = priorityRank(task.Priority)
	}
	order := func(loads []TaskLoad) {
		sort.SliceStable(loads, func(i, j int) bool {
			if loads[i].Deadline != loads[j].Deadline {
				return loads[i].Deadline < loads[j].Deadline
			}
			return rank[loads[i].TaskID] < rank[loads[j].TaskID]
		})
	}
	order(w.Tasks)
	order(w.Overdue)

	return w, nil
}

func priorityRank(p models.Priority) int {
	switch p {
	case models.PriorityHigh:
		return 0
	case models.PriorityMedium:
		return 1
	}
	return 2
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
