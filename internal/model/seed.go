package model

// Seed returns the built-in board shown when the very first load fails.
func Seed() []Todo {
	return []Todo{
		{ID: "1", Title: "Complete project documentation", Status: StatusPending, OwnerID: 1,
			Description: "Write comprehensive documentation for the project"},
		{ID: "2", Title: "Code review for PR #123", Status: StatusInProgress, OwnerID: 1,
			Description: "Review the pull request for the new feature"},
		{ID: "3", Title: "Fix login bug", Status: StatusCompleted, Completed: true, OwnerID: 1,
			Description: "The login page has an issue with validation"},
		{ID: "4", Title: "Update dependencies", Status: StatusPending, OwnerID: 1,
			Description: "Update all npm packages to latest versions"},
		{ID: "5", Title: "Deploy to production", Status: StatusPending, OwnerID: 1,
			Description: "Deploy the latest changes to production environment"},
		{ID: "6", Title: "Create user profile page", Status: StatusInProgress, OwnerID: 1,
			Description: "Design and implement the user profile page"},
		{ID: "7", Title: "Update README", Status: StatusInProgress, OwnerID: 1,
			Description: "Add instructions for installation and usage"},
	}
}
