package evfrontend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetClientJob_JobNoneUsesClientName(t *testing.T) {
	r := NewRegistry()
	cli := r.ClientLookup("c101", true)

	r.SetClientJob(cli, JobNone)

	require.NotNil(t, cli.Job)
	assert.Equal(t, "c101", cli.Job.Name)
	assert.Same(t, cli, cli.Job.Clients["c101"])
}

func TestSetClientJob_NoOpWhenAlreadyInJob(t *testing.T) {
	r := NewRegistry()
	cli := r.ClientLookup("c101", true)
	r.SetClientJob(cli, "job42")
	job := cli.Job

	r.SetClientJob(cli, "job42")

	assert.Same(t, job, cli.Job, "re-assigning the same job must be a no-op")
}

func TestSetClientJob_MovesBetweenJobsAndFreesEmptyOldJob(t *testing.T) {
	r := NewRegistry()
	cli := r.ClientLookup("c101", true)
	r.SetClientJob(cli, "job1")

	r.SetClientJob(cli, "job2")

	assert.Equal(t, "job2", cli.Job.Name)
	_, stillThere := r.jobs["job1"]
	assert.False(t, stillThere, "job1 should be freed once empty")
	assert.Contains(t, r.jobs, "job2")
}

func TestSetClientJob_OldJobSurvivesIfFrameStillReferencesIt(t *testing.T) {
	r := NewRegistry()
	cli := r.ClientLookup("c101", true)
	r.SetClientJob(cli, "job1")
	job1 := cli.Job
	job1.Frames["srv1"] = &FrameEntry{Name: "c101", Job: job1}

	r.SetClientJob(cli, "job2")

	_, stillThere := r.jobs["job1"]
	assert.True(t, stillThere, "job1 has a frame still referencing it, must not be freed")
}

func TestClientJob_CreatesJobNamedAfterClientOnFirstAccess(t *testing.T) {
	r := NewRegistry()
	cli := r.ClientLookup("c101", true)

	job := r.ClientJob(cli, true)

	require.NotNil(t, job)
	assert.Equal(t, "c101", job.Name)
}

func TestClientJob_NoCreateReturnsNilWithoutJob(t *testing.T) {
	r := NewRegistry()
	cli := r.ClientLookup("c101", true)

	assert.Nil(t, r.ClientJob(cli, false))
}
