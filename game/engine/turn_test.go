package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeployAgent_TurnStaysZeroUntilLastAgent(t *testing.T) {
	rules := DefaultRules()
	gs := NewGameState(rules)

	for i := 0; i < rules.MaxAgents-1; i++ {
		events, err := gs.DeployAgent(Position{Row: 2, Col: i}, rules)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, EventAgentDeployed, events[0].Kind)
		assert.Equal(t, 0, gs.Turn)
		assert.Equal(t, PhaseDeployment, gs.Phase())
	}

	events, err := gs.DeployAgent(Position{Row: 3, Col: 3}, rules)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "AGENT A4 DEPLOYED TO (4,4)", events[0].Message)
	assert.Equal(t, EventDeploymentComplete, events[1].Kind)
	assert.Equal(t, "DEPLOYMENT COMPLETE - TURN 1", events[1].Message)
	assert.Equal(t, 1, gs.Turn)
	assert.Equal(t, PhaseAwaitingAction, gs.Phase())
}

func TestDeployAgent_PastCapIsSilent(t *testing.T) {
	gs, rules := deployedState(t)

	for i := 0; i < 10; i++ {
		events, err := gs.DeployAgent(Position{Row: 3, Col: 3}, rules)
		require.NoError(t, err)
		assert.Empty(t, events)
	}
	assert.Len(t, gs.Agents, rules.MaxAgents)
	assert.Equal(t, 1, gs.Turn)
}

func TestDeployAgent_SameCellAllowed(t *testing.T) {
	rules := DefaultRules()
	gs := NewGameState(rules)
	for i := 0; i < rules.MaxAgents; i++ {
		_, err := gs.DeployAgent(Position{Row: 1, Col: 1}, rules)
		require.NoError(t, err)
	}
	assert.Len(t, gs.AgentsAt(Position{Row: 1, Col: 1}), 4)
	for i, a := range gs.Agents {
		assert.Equal(t, i+1, a.ID)
	}
}

func TestDeployAgent_OutOfBounds(t *testing.T) {
	rules := DefaultRules()
	gs := NewGameState(rules)
	_, err := gs.DeployAgent(Position{Row: 4, Col: 0}, rules)
	assert.ErrorIs(t, err, ErrInvalidPosition)
	assert.Empty(t, gs.Agents)
}

func TestChooseAction(t *testing.T) {
	t.Run("ignored during deployment", func(t *testing.T) {
		rules := DefaultRules()
		gs := NewGameState(rules)
		events, err := gs.ChooseAction(ActionMove)
		require.NoError(t, err)
		assert.Empty(t, events)
		assert.Equal(t, ActionNone, gs.PendingAction)
	})

	t.Run("unknown kind", func(t *testing.T) {
		gs, _ := deployedState(t)
		_, err := gs.ChooseAction("jump")
		assert.ErrorIs(t, err, ErrInvalidAction)
	})

	t.Run("idempotent re-choice logs again", func(t *testing.T) {
		gs, _ := deployedState(t)
		first, err := gs.ChooseAction(ActionTrap)
		require.NoError(t, err)
		second, err := gs.ChooseAction(ActionTrap)
		require.NoError(t, err)
		require.Len(t, first, 1)
		require.Len(t, second, 1)
		assert.Equal(t, "TRAP SELECTED", second[0].Message)
		assert.Equal(t, ActionTrap, gs.PendingAction)
	})

	t.Run("keeps existing selection", func(t *testing.T) {
		gs, rules := deployedState(t)
		_, _ = gs.ChooseAction(ActionMove)
		_, err := gs.SelectAgentCell(Position{Row: 0, Col: 2}, rules)
		require.NoError(t, err)

		events, err := gs.ChooseAction(ActionTrap)
		require.NoError(t, err)
		require.Len(t, events, 1)
		require.NotNil(t, gs.Selection)
		assert.Equal(t, Position{Row: 0, Col: 2}, *gs.Selection)
		assert.Equal(t, ActionTrap, gs.PendingAction)
		assert.Equal(t, PhaseAwaitingTarget, gs.Phase())

		// The switched action resolves from the kept selection
		events, err = gs.ResolveAction(Position{Row: 1, Col: 2}, rules)
		require.NoError(t, err)
		require.NotEmpty(t, events)
		assert.Equal(t, EventTrapDeployed, events[0].Kind)
	})
}

func TestSelectAgentCell(t *testing.T) {
	t.Run("requires an action", func(t *testing.T) {
		gs, rules := deployedState(t)
		events, err := gs.SelectAgentCell(Position{Row: 0, Col: 0}, rules)
		assert.ErrorIs(t, err, ErrSelectActionFirst)
		assert.True(t, IsUserError(err))
		assert.Empty(t, events)
		assert.Nil(t, gs.Selection)
	})

	t.Run("empty cell has no effect", func(t *testing.T) {
		gs, rules := deployedState(t)
		_, _ = gs.ChooseAction(ActionMove)
		events, err := gs.SelectAgentCell(Position{Row: 2, Col: 2}, rules)
		require.NoError(t, err)
		assert.Empty(t, events)
		assert.Nil(t, gs.Selection)
	})

	t.Run("selects agent cell", func(t *testing.T) {
		gs, rules := deployedState(t)
		_, _ = gs.ChooseAction(ActionTrap)
		events, err := gs.SelectAgentCell(Position{Row: 0, Col: 3}, rules)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, "CELL (1,4) SELECTED FOR TRAP", events[0].Message)
		require.NotNil(t, gs.Selection)
		assert.Equal(t, Position{Row: 0, Col: 3}, *gs.Selection)
	})

	t.Run("second selection is ignored", func(t *testing.T) {
		gs, rules := deployedState(t)
		_, _ = gs.ChooseAction(ActionMove)
		_, _ = gs.SelectAgentCell(Position{Row: 0, Col: 0}, rules)
		events, err := gs.SelectAgentCell(Position{Row: 0, Col: 1}, rules)
		require.NoError(t, err)
		assert.Empty(t, events)
		assert.Equal(t, Position{Row: 0, Col: 0}, *gs.Selection)
	})
}

func TestActivateCell_Dispatch(t *testing.T) {
	rules := DefaultRules()
	gs := NewGameState(rules)

	// Deployment
	for c := 0; c < 4; c++ {
		_, err := gs.ActivateCell(Position{Row: 0, Col: c}, rules)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, gs.Turn)

	// No action chosen: user error on any cell, occupied or not
	for _, p := range []Position{{Row: 0, Col: 0}, {Row: 3, Col: 3}} {
		events, err := gs.ActivateCell(p, rules)
		assert.ErrorIs(t, err, ErrSelectActionFirst)
		assert.Empty(t, events)
	}

	_, _ = gs.ChooseAction(ActionMove)

	// Selection
	events, err := gs.ActivateCell(Position{Row: 0, Col: 1}, rules)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventCellSelected, events[0].Kind)

	// Resolution
	events, err = gs.ActivateCell(Position{Row: 1, Col: 1}, rules)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, EventAgentMoved, events[0].Kind)
	assert.Equal(t, 2, gs.Turn)
}

func TestBeginDrag(t *testing.T) {
	t.Run("forces move and selects origin", func(t *testing.T) {
		gs, rules := deployedState(t)
		events, err := gs.BeginDrag(Position{Row: 0, Col: 0}, rules)
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, EventActionChosen, events[0].Kind)
		assert.Equal(t, EventCellSelected, events[1].Kind)
		assert.Equal(t, ActionMove, gs.PendingAction)

		events, err = gs.ActivateCell(Position{Row: 1, Col: 0}, rules)
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, Position{Row: 1, Col: 0}, gs.Agents[0].Position)
		assert.Equal(t, 2, gs.Turn)
	})

	t.Run("overrides pending trap", func(t *testing.T) {
		gs, rules := deployedState(t)
		_, _ = gs.ChooseAction(ActionTrap)
		_, err := gs.BeginDrag(Position{Row: 0, Col: 1}, rules)
		require.NoError(t, err)
		assert.Equal(t, ActionMove, gs.PendingAction)
	})

	t.Run("move already pending logs only the selection", func(t *testing.T) {
		gs, rules := deployedState(t)
		_, _ = gs.ChooseAction(ActionMove)
		events, err := gs.BeginDrag(Position{Row: 0, Col: 1}, rules)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, EventCellSelected, events[0].Kind)
	})

	t.Run("ignored on empty cell", func(t *testing.T) {
		gs, rules := deployedState(t)
		events, err := gs.BeginDrag(Position{Row: 2, Col: 2}, rules)
		require.NoError(t, err)
		assert.Empty(t, events)
		assert.Equal(t, ActionNone, gs.PendingAction)
	})

	t.Run("ignored during deployment", func(t *testing.T) {
		rules := DefaultRules()
		gs := NewGameState(rules)
		_, _ = gs.DeployAgent(Position{Row: 0, Col: 0}, rules)
		events, err := gs.BeginDrag(Position{Row: 0, Col: 0}, rules)
		require.NoError(t, err)
		assert.Empty(t, events)
	})

	t.Run("ignored with existing selection", func(t *testing.T) {
		gs, rules := deployedState(t)
		_, _ = gs.ChooseAction(ActionTrap)
		_, _ = gs.SelectAgentCell(Position{Row: 0, Col: 0}, rules)
		events, err := gs.BeginDrag(Position{Row: 0, Col: 1}, rules)
		require.NoError(t, err)
		assert.Empty(t, events)
		assert.Equal(t, ActionTrap, gs.PendingAction)
	})
}

func TestHint(t *testing.T) {
	rules := DefaultRules()
	gs := NewGameState(rules)
	assert.Equal(t, "DEPLOY 4 AGENTS BY CLICKING ANY CELL", gs.Hint(rules))

	_, _ = gs.DeployAgent(Position{Row: 0, Col: 0}, rules)
	assert.Equal(t, "DEPLOY 3 AGENTS BY CLICKING ANY CELL", gs.Hint(rules))

	gs, rules = deployedState(t)
	assert.Equal(t, "SELECT MOVE OR TRAP", gs.Hint(rules))

	_, _ = gs.ChooseAction(ActionMove)
	assert.Equal(t, "CLICK AN AGENT CELL TO MOVE", gs.Hint(rules))

	_, _ = gs.SelectAgentCell(Position{Row: 0, Col: 0}, rules)
	assert.Equal(t, "CLICK AN ADJACENT CELL TO MOVE", gs.Hint(rules))

	_, _ = gs.ChooseAction(ActionTrap)
	assert.Equal(t, "CLICK AN ADJACENT CELL TO DEPLOY TRAP", gs.Hint(rules))
}

func TestSuccessfulActionsAdvanceTurnByOne(t *testing.T) {
	gs, rules := deployedState(t)

	steps := []struct {
		action ActionKind
		from   Position
		to     Position
	}{
		{ActionMove, Position{Row: 0, Col: 0}, Position{Row: 1, Col: 0}},
		{ActionTrap, Position{Row: 1, Col: 0}, Position{Row: 2, Col: 0}},
		{ActionMove, Position{Row: 0, Col: 3}, Position{Row: 1, Col: 3}},
		{ActionTrap, Position{Row: 1, Col: 3}, Position{Row: 1, Col: 2}},
	}

	for _, step := range steps {
		before := gs.Turn
		_, err := gs.ChooseAction(step.action)
		require.NoError(t, err)
		_, err = gs.ActivateCell(step.from, rules)
		require.NoError(t, err)
		_, err = gs.ActivateCell(step.to, rules)
		require.NoError(t, err)

		assert.Equal(t, before+1, gs.Turn)
		assert.Nil(t, gs.Selection)
		assert.Equal(t, ActionNone, gs.PendingAction)
	}
}

func TestClone(t *testing.T) {
	gs, rules := deployedState(t)
	_, _ = gs.ChooseAction(ActionMove)
	_, _ = gs.SelectAgentCell(Position{Row: 0, Col: 0}, rules)

	clone := gs.Clone()
	clone.Agents[0].Position = Position{Row: 3, Col: 3}
	clone.Selection.Row = 2

	assert.Equal(t, Position{Row: 0, Col: 0}, gs.Agents[0].Position)
	assert.Equal(t, 0, gs.Selection.Row)
}
