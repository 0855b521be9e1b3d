package filecmd

// WorkerControlFD is the descriptor number of the control socket in a worker
// process. The parent passes the socket as the first extra file.
const WorkerControlFD = 3

// WorkerSlotEnv carries the worker's slot number (0..PoolSize-1) to the child.
const WorkerSlotEnv = "FILECMD_WORKER_SLOT"

// WorkerCommand describes how the parent starts a worker process.
//
// The child must end up calling ServeWorker on WorkerControlFD. The server
// binary does this in its hidden "worker" command, which reloads the same
// configuration as the parent.
type WorkerCommand struct {
	// Path is the executable to run. Empty means the running executable.
	Path string

	// Args are the arguments after the program name.
	Args []string

	// Env is appended to the parent's environment.
	Env []string
}
