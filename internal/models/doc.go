// Package models defines the domain entities BrainBox synchronizes between the
// backend and its clients.
//
// # Entities
//
// Every feature of the application is a list of owned entities:
//   - Post, SavedPost: the social feed and a viewer's bookmarks
//   - ScheduleEntry: the weekly class schedule
//   - Transaction: budget tracker income and expenses
//   - Task: study planner items
//   - SkillGoal: skill progress tracker goals
//   - ExamRoutineEntry: upcoming exams
//
// Each entity belongs to exactly one owner key (the account email) and is only
// listed, edited or deleted through queries scoped to that key. Entity types are
// independent: there are no references between kinds except SavedPost, which
// snapshots the post it was saved from.
//
// # Design Principles
//
//  1. Explicit records: each kind is a struct with a Validate method, so a
//     malformed payload is rejected before it reaches the network or the store.
//  2. Partial edits are Patch values restricted to the kind's mutable fields.
//  3. IDs, owners and server timestamps are assigned by the backend (Assign).
package models
