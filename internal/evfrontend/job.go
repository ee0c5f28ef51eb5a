// Package evfrontend implements the job-mapper and per-server frame state
// of lltop's event-driven front-end: a long-lived subprocess that emits
// "<client> <job>" bindings which move clients between jobs, and the
// per-server frame bookkeeping a live event loop would key timers and
// socket callbacks off of. The terminal UI, key input, and refresh timer
// that drive those callbacks are out of scope here; only the state
// machine is built and tested.
package evfrontend

// JobNone is the sentinel a job-mapper line uses to mean "this client has
// no scheduler job; use the client's own name as its label."
const JobNone = "0"

// Job groups the clients and server frames currently attributed to one
// job name (or, when a client has no scheduler job, to that client's own
// name standing in for a job).
type Job struct {
	Name    string
	Clients map[string]*Client
	Frames  map[string]*FrameEntry
}

func newJob(name string) *Job {
	return &Job{
		Name:    name,
		Clients: make(map[string]*Client),
		Frames:  make(map[string]*FrameEntry),
	}
}

// empty reports whether the job has no clients and no frames referencing
// it, the condition under which it is deallocated.
func (j *Job) empty() bool {
	return len(j.Clients) == 0 && len(j.Frames) == 0
}

// Client is one Lustre client, bound to at most one Job at a time.
type Client struct {
	Name string
	Job  *Job
}

// FrameEntry is one entry of a server's frame, holding a Job reference (a
// frame belongs to whichever job owns the client it was last attributed
// to) so job_put's empty-check considers frames in addition to clients,
// mirroring frame_entry/job_struct's bidirectional reference. It records
// only its name, job and generation; it carries no per-interval counters.
type FrameEntry struct {
	Name string
	Job  *Job
	Gen  uint64
}

// ServerFrame is the per-server set of FrameEntry records observed at the
// most recent generation tick, keyed by client name.
type ServerFrame struct {
	Name   string
	Gen    uint64
	Frames map[string]*FrameEntry
}

func NewServerFrame(name string) *ServerFrame {
	return &ServerFrame{Name: name, Frames: make(map[string]*FrameEntry)}
}

// Registry owns every known Job and Client, playing the role of
// lltop-ev.c's global name_job_dict / name_client_dict.
type Registry struct {
	jobs    map[string]*Job
	clients map[string]*Client
}

func NewRegistry() *Registry {
	return &Registry{
		jobs:    make(map[string]*Job),
		clients: make(map[string]*Client),
	}
}

// jobLookup returns the named job, creating it if create is set and it
// doesn't exist yet.
func (r *Registry) jobLookup(name string, create bool) *Job {
	if j, ok := r.jobs[name]; ok {
		return j
	}
	if !create {
		return nil
	}
	j := newJob(name)
	r.jobs[name] = j
	return j
}

// jobPut drops a job from the registry once it has no clients and no
// frames left referencing it.
func (r *Registry) jobPut(j *Job) {
	if !j.empty() {
		return
	}
	delete(r.jobs, j.Name)
}

// ClientLookup returns the named client, creating it if create is set and
// it doesn't exist yet.
func (r *Registry) ClientLookup(name string, create bool) *Client {
	if c, ok := r.clients[name]; ok {
		return c
	}
	if !create {
		return nil
	}
	c := &Client{Name: name}
	r.clients[name] = c
	return c
}

// SetClientJob moves cli into the named job, per §4.9: JobNone means "use
// the client's own name as its job label"; if cli is already in that job,
// this is a no-op; otherwise cli moves, and if its old job is left empty
// it is freed.
func (r *Registry) SetClientJob(cli *Client, jobName string) {
	if jobName == JobNone {
		jobName = cli.Name
	}

	curJob := cli.Job
	if curJob != nil && jobName == curJob.Name {
		return
	}

	newJob := r.jobLookup(jobName, true)

	if curJob != nil {
		delete(curJob.Clients, cli.Name)
	}
	newJob.Clients[cli.Name] = cli
	cli.Job = newJob

	if curJob != nil {
		r.jobPut(curJob)
	}
}

// ClientJob returns cli's current job, assigning it to a job named after
// the client itself if it has none yet and create is set (client_get_job's
// "use client name as job name" fallback).
func (r *Registry) ClientJob(cli *Client, create bool) *Job {
	if cli.Job == nil && create {
		r.SetClientJob(cli, cli.Name)
	}
	return cli.Job
}
