package graph

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/guildops-backend/internal/domain/quest"
)

func node(id string, opts ...func(*quest.BlueprintNode)) *quest.BlueprintNode {
	n := &quest.BlueprintNode{ID: id, Title: id}
	for _, o := range opts {
		o(n)
	}
	return n
}

func group(n *quest.BlueprintNode) { n.Metadata.IsGroup = true }
func final(n *quest.BlueprintNode) { n.Metadata.IsFinal = true }

func sortOrder(v int) func(*quest.BlueprintNode) {
	return func(n *quest.BlueprintNode) { n.SortOrder = v }
}

func link(parent, child string) *quest.BlueprintLink {
	return &quest.BlueprintLink{ParentNodeID: parent, ChildNodeID: child}
}

func seqLink(parent, child string) *quest.BlueprintLink {
	return &quest.BlueprintLink{ParentNodeID: parent, ChildNodeID: child, Conditions: quest.NewLinkConditions(true)}
}

func requireRule(t *testing.T, err error, rule Rule) *ValidationError {
	t.Helper()
	require.Error(t, err)
	var ve *ValidationError
	require.True(t, errors.As(err, &ve), "expected *ValidationError, got %T", err)
	assert.Equal(t, rule, ve.Rule)
	return ve
}

func TestValidateAcceptsWellFormedGraph(t *testing.T) {
	nodes := []*quest.BlueprintNode{node("a"), node("b"), node("g", group), node("h", group)}
	links := []*quest.BlueprintLink{link("a", "b"), link("g", "b"), seqLink("g", "h")}
	assert.NoError(t, Validate(nodes, links))
}

func TestValidateRejectsDuplicateNode(t *testing.T) {
	ve := requireRule(t, Validate([]*quest.BlueprintNode{node("a"), node("a")}, nil), RuleDuplicateNode)
	assert.Equal(t, "a", ve.NodeID)
}

func TestValidateRejectsDanglingLink(t *testing.T) {
	err := Validate([]*quest.BlueprintNode{node("a")}, []*quest.BlueprintLink{link("a", "ghost")})
	ve := requireRule(t, err, RuleUnknownEndpoint)
	assert.Equal(t, "ghost", ve.NodeID)
	assert.True(t, errors.Is(err, ErrUnknownNode))
}

func TestValidateRejectsSelfLoop(t *testing.T) {
	requireRule(t, Validate([]*quest.BlueprintNode{node("a")}, []*quest.BlueprintLink{link("a", "a")}), RuleSelfLoop)
}

func TestValidateRejectsDuplicatePair(t *testing.T) {
	nodes := []*quest.BlueprintNode{node("a"), node("b")}
	requireRule(t, Validate(nodes, []*quest.BlueprintLink{link("a", "b"), seqLink("a", "b")}), RuleDuplicateLink)
}

func TestValidateRejectsGroupToGroupDependency(t *testing.T) {
	nodes := []*quest.BlueprintNode{node("g", group), node("h", group)}
	requireRule(t, Validate(nodes, []*quest.BlueprintLink{link("g", "h")}), RuleGroupToGroup)
}

func TestValidateRejectsMissingIDs(t *testing.T) {
	requireRule(t, Validate([]*quest.BlueprintNode{node("")}, nil), RuleMissingID)
	requireRule(t, Validate([]*quest.BlueprintNode{node("a")}, []*quest.BlueprintLink{link("a", " ")}), RuleMissingID)
}

func TestValidateChecksRulesInOrder(t *testing.T) {
	// Self-loop appears first in the list, but the dangling link is a higher-priority rule.
	nodes := []*quest.BlueprintNode{node("a")}
	links := []*quest.BlueprintLink{link("a", "a"), link("a", "ghost")}
	requireRule(t, Validate(nodes, links), RuleUnknownEndpoint)
}
