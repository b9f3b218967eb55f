package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/swarmd/internal/plan"
	"github.com/fyrsmithlabs/swarmd/internal/roles"
	"github.com/fyrsmithlabs/swarmd/internal/store"
)

const ingestPlanText = `# Notification service

## Overview
Sends templated notifications over email and webhooks.

## Features

### Template engine
- Priority: High
- Description: Render notification templates
- Agent: coder
- Dependencies: none
- Acceptance Criteria:
  - variables interpolate
- Microtasks:
  - renderer

### Email channel
- Priority: Medium
- Description: Deliver rendered notifications over SMTP
- Agent: coder
- Dependencies: Template engine
- Acceptance Criteria:
  - delivery is retried
- Microtasks:
  - smtp client

## Architecture Decisions

### Queue before delivery
Deliveries go through a durable queue so template rendering never blocks on SMTP.
`

func TestIngestPlan(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()

	doc, err := plan.Parse(ingestPlanText)
	require.NoError(t, err)

	project, tasks, err := IngestPlan(ctx, mem, doc)
	require.NoError(t, err)
	assert.Equal(t, "Notification service", project.Name)
	assert.Contains(t, project.Description, "templated notifications")

	require.Len(t, tasks, 2)
	assert.Equal(t, "Template engine", tasks[0].Title, "dependency order preserved")
	assert.Equal(t, roles.Coder, tasks[0].Agent)
	assert.Equal(t, store.PriorityHigh, tasks[0].Priority)
	assert.Contains(t, tasks[0].Description, "Acceptance criteria:")
	assert.Contains(t, tasks[0].Description, "variables interpolate")

	assert.Equal(t, "Email channel", tasks[1].Title)
	require.Len(t, tasks[1].Dependencies, 1)
	assert.Equal(t, tasks[0].ID, tasks[1].Dependencies[0])

	decisions, err := mem.ListDecisions(ctx, project.ID)
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.Equal(t, "Queue before delivery", decisions[0].Title)
}
