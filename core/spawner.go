package core

// Spawner places tasks on one executor. It is confined to that executor's own
// context: obtain it from Context.Spawner inside a task, or from
// Executor.Spawner on the goroutine that runs the executor. It accepts both
// shareable and local tokens.
type Spawner struct {
	executor *Executor
}

// SpawnerFromContext returns the spawner of the executor running the caller.
func SpawnerFromContext(cx *Context) Spawner { return cx.Spawner() }

// Executor returns the target executor.
func (s Spawner) Executor() *Executor { return s.executor }

// Spawn starts the task held by token. A poisoned token, or one that was
// already spawned or discarded, yields ErrBusy and changes nothing.
func (s Spawner) Spawn(token SpawnToken) error {
	if !token.take() {
		return s.executor.rejectSpawn("busy", ErrBusy)
	}
	s.executor.spawn(token.task)
	return nil
}

// MustSpawn is Spawn for setup code; it panics on error.
func (s Spawner) MustSpawn(token SpawnToken) {
	if err := s.Spawn(token); err != nil {
		panic(err)
	}
}

// MakeSend converts the spawner into one that may leave its context.
func (s Spawner) MakeSend() SendSpawner { return SendSpawner{executor: s.executor} }

// SendSpawner places tasks on an executor from any goroutine, interrupt
// handler or other executor. It only accepts shareable tokens.
type SendSpawner struct {
	executor *Executor
}

// Executor returns the target executor.
func (s SendSpawner) Executor() *Executor { return s.executor }

// Spawn starts the task held by token. Poisoned or already used tokens yield
// ErrBusy; local tokens yield ErrNotShareable and their claimed slot is
// released.
func (s SendSpawner) Spawn(token SpawnToken) error {
	if !token.take() {
		return s.executor.rejectSpawn("busy", ErrBusy)
	}
	if token.local {
		token.release()
		return s.executor.rejectSpawn("not_shareable", ErrNotShareable)
	}
	s.executor.spawn(token.task)
	return nil
}

// MustSpawn is Spawn for setup code; it panics on error.
func (s SendSpawner) MustSpawn(token SpawnToken) {
	if err := s.Spawn(token); err != nil {
		panic(err)
	}
}
