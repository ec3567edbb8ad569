package dispatch

import "github.com/plexirun/plexir/internal/domain"

// claim is one command's outstanding hold on a named resource.
type claim struct {
	commandID string
	priority  int
	lower     float64
	upper     float64
	release   bool // ResourceDecl.ReleaseOnTermination, copied at Acquire time
}

// ResourceArbiter enforces §4.7's bound-sum/priority rule: a resource has
// a fixed capacity; a command's declared [lower, upper] usage must fit
// within what remains after higher-priority (lower numeric value)
// incumbents are honored. On contention, lower-priority claims are
// displaced (denied/aborted) to make room for a higher-priority
// contender; ties favor the incumbent already holding the resource.
type ResourceArbiter struct {
	capacity map[string]float64
	held     map[string][]claim
}

// NewResourceArbiter builds an arbiter with the given named resource
// capacities.
func NewResourceArbiter(capacity map[string]float64) *ResourceArbiter {
	return &ResourceArbiter{capacity: capacity, held: make(map[string][]claim)}
}

// Outcome of a single resource's arbitration for one command.
type Outcome struct {
	Granted   bool
	Displaced []string // command IDs bumped to make room
}

// Acquire attempts to grant every resource a command declares, per
// §4.7. If any one resource cannot accommodate the command even after
// displacing every displaceable lower-priority claim, the whole
// acquisition is denied and no resource is held (all-or-nothing, matching
// the transactional claim semantics PLEXIL's resource spec implies for a
// single command's resource list).
func (a *ResourceArbiter) Acquire(commandID string, decls []domain.ResourceDecl) (map[string]Outcome, bool) {
	results := make(map[string]Outcome, len(decls))
	allGranted := true
	for _, d := range decls {
		out := a.tryAcquireOne(commandID, d)
		results[d.Name] = out
		if !out.Granted {
			allGranted = false
		}
	}
	if !allGranted {
		// Roll back any partial grants.
		for _, d := range decls {
			a.Release(commandID, d.Name)
		}
		return results, false
	}
	return results, true
}

func (a *ResourceArbiter) tryAcquireOne(commandID string, d domain.ResourceDecl) Outcome {
	cap, hasCap := a.capacity[d.Name]
	if !hasCap {
		cap = d.Upper // an undeclared-capacity resource is sized to the first claimant
	}

	existing := a.held[d.Name]
	used := 0.0
	for _, c := range existing {
		used += c.upper
	}

	if used+d.Upper <= cap {
		a.held[d.Name] = append(existing, claim{commandID: commandID, priority: d.Priority, lower: d.Lower, upper: d.Upper, release: d.ReleaseOnTermination})
		return Outcome{Granted: true}
	}

	// Contention: displace lower-priority claims (larger Priority number
	// = lower priority, per §4.7) until the new claim fits, or fail.
	sorted := append([]claim(nil), existing...)
	sortByPriorityDesc(sorted) // worst priority first, i.e. most displaceable first
	var displaced []string
	remaining := used
	for _, c := range sorted {
		if c.priority <= d.Priority {
			// incumbent is equal-or-better priority: tie favors incumbent, break on first non-displaceable
			break
		}
		remaining -= c.upper
		displaced = append(displaced, c.commandID)
		if remaining+d.Upper <= cap {
			break
		}
	}
	if remaining+d.Upper > cap {
		return Outcome{Granted: false}
	}

	kept := make([]claim, 0, len(existing))
	for _, c := range existing {
		bumped := false
		for _, id := range displaced {
			if id == c.commandID {
				bumped = true
				break
			}
		}
		if !bumped {
			kept = append(kept, c)
		}
	}
	kept = append(kept, claim{commandID: commandID, priority: d.Priority, lower: d.Lower, upper: d.Upper, release: d.ReleaseOnTermination})
	a.held[d.Name] = kept
	return Outcome{Granted: true, Displaced: displaced}
}

func sortByPriorityDesc(claims []claim) {
	for i := 1; i < len(claims); i++ {
		j := i
		for j > 0 && claims[j-1].priority < claims[j].priority {
			claims[j-1], claims[j] = claims[j], claims[j-1]
			j--
		}
	}
}

// Release frees commandID's claim on resource name, if any.
func (a *ResourceArbiter) Release(commandID, name string) {
	existing := a.held[name]
	out := existing[:0]
	for _, c := range existing {
		if c.commandID != commandID {
			out = append(out, c)
		}
	}
	a.held[name] = out
}

// ReleaseAll frees every resource commandID currently holds, regardless of
// each claim's ReleaseOnTermination flag. Used when a command is rolled
// back before ever actually dispatching (§4.7) — there is no termination
// to speak of yet, so nothing is eligible to survive it.
func (a *ResourceArbiter) ReleaseAll(commandID string) {
	for name := range a.held {
		a.Release(commandID, name)
	}
}

// ReleaseTerminated frees only the resources commandID holds with
// ReleaseOnTermination true (§3, §4.7: "currently-granted holders...
// whose release flag is false" remain held past their owning command's
// termination). Called once a dispatched command's handle reaches a
// terminal value; claims made with the flag false are left in place,
// still counting against capacity for future arbitration.
func (a *ResourceArbiter) ReleaseTerminated(commandID string) {
	for name, claims := range a.held {
		kept := make([]claim, 0, len(claims))
		for _, c := range claims {
			if c.commandID == commandID && c.release {
				continue
			}
			kept = append(kept, c)
		}
		a.held[name] = kept
	}
}
