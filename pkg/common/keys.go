package common

import "fmt"

var (
	// Run state keys
	runState      string = "runwatch:state:%s" // runName
	runStateIndex string = "runwatch:state:index"
	runPollLock   string = "runwatch:lock:poll:%s" // runName

	// Watcher keys
	watcherInitLock string = "runwatch:lock:init:%s" // name

	// Event keys
	eventChannel string = "runwatch:events"
)

var Keys = &redisKeys{}

type redisKeys struct{}

// Run state keys
func (rk *redisKeys) RunState(runName string) string {
	return fmt.Sprintf(runState, runName)
}

func (rk *redisKeys) RunStateIndex() string {
	return runStateIndex
}

func (rk *redisKeys) RunPollLock(runName string) string {
	return fmt.Sprintf(runPollLock, runName)
}

// Watcher keys
func (rk *redisKeys) WatcherInitLock(name string) string {
	return fmt.Sprintf(watcherInitLock, name)
}

// Event keys
func (rk *redisKeys) EventChannel() string {
	return eventChannel
}
