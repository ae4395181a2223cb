package booking

// WaitEstimate maps a queue position to the number of people ahead and an
// estimated wait, assuming a fixed average consultation length.
type WaitEstimate struct {
	PeopleAhead          int
	EstimatedWaitMinutes int
}

// Estimate is pure: queue position in, wait estimate out.
func Estimate(queueNumber int) WaitEstimate {
	ahead := queueNumber - 1
	if ahead < 0 {
		ahead = 0
	}
	return WaitEstimate{
		PeopleAhead:          ahead,
		EstimatedWaitMinutes: ahead * AvgConsultationMinutes,
	}
}
