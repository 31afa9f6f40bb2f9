package domain

// DefaultScheduleTimes are the trigger times used until an operator
// saves their own schedule.
var DefaultScheduleTimes = []string{"09:25", "12:30", "15:10"}

// ScheduleConfig holds the times of day at which generation for
// "today" fires automatically. Times are HH:MM, ascending, unique.
type ScheduleConfig struct {
	Times []string `json:"schedule_times" mapstructure:"schedule_times"`
}
