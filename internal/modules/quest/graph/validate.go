package graph

import (
	"errors"
	"fmt"
	"strings"

	"github.com/yungbote/guildops-backend/internal/domain/quest"
)

// ErrUnknownNode matches validation failures caused by a link endpoint that
// is not part of the submitted node set.
var ErrUnknownNode = errors.New("unknown node reference")

type Rule string

const (
	RuleMissingID       Rule = "missing_id"
	RuleDuplicateNode   Rule = "duplicate_node"
	RuleUnknownEndpoint Rule = "unknown_endpoint"
	RuleSelfLoop        Rule = "self_loop"
	RuleDuplicateLink   Rule = "duplicate_link"
	RuleGroupToGroup    Rule = "group_to_group"
)

// ValidationError identifies the first structural problem in a graph submission.
type ValidationError struct {
	Rule    Rule
	NodeID  string
	LinkID  string
	Message string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("invalid graph (%s): %s", e.Rule, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrUnknownNode && e.Rule == RuleUnknownEndpoint
}

func linkLabel(l *quest.BlueprintLink) string {
	if id := strings.TrimSpace(l.ID); id != "" {
		return fmt.Sprintf("link %q (%s -> %s)", id, l.ParentNodeID, l.ChildNodeID)
	}
	return fmt.Sprintf("link %s -> %s", l.ParentNodeID, l.ChildNodeID)
}

// Validate checks a proposed node/link set. Each rule is checked over the
// whole submission before the next rule runs; the first violation wins.
func Validate(nodes []*quest.BlueprintNode, links []*quest.BlueprintLink) error {
	for i, n := range nodes {
		if n == nil || strings.TrimSpace(n.ID) == "" {
			return &ValidationError{Rule: RuleMissingID, Message: fmt.Sprintf("node at position %d has no id", i)}
		}
	}
	for i, l := range links {
		if l == nil || strings.TrimSpace(l.ParentNodeID) == "" || strings.TrimSpace(l.ChildNodeID) == "" {
			return &ValidationError{Rule: RuleMissingID, Message: fmt.Sprintf("link at position %d is missing an endpoint", i)}
		}
	}

	byID := make(map[string]*quest.BlueprintNode, len(nodes))
	for _, n := range nodes {
		if _, dup := byID[n.ID]; dup {
			return &ValidationError{Rule: RuleDuplicateNode, NodeID: n.ID, Message: fmt.Sprintf("node id %q appears more than once", n.ID)}
		}
		byID[n.ID] = n
	}

	for _, l := range links {
		for _, endpoint := range []string{l.ParentNodeID, l.ChildNodeID} {
			if _, ok := byID[endpoint]; !ok {
				return &ValidationError{
					Rule:    RuleUnknownEndpoint,
					NodeID:  endpoint,
					LinkID:  l.ID,
					Message: fmt.Sprintf("%s references unknown node %q", linkLabel(l), endpoint),
				}
			}
		}
	}

	for _, l := range links {
		if l.ParentNodeID == l.ChildNodeID {
			return &ValidationError{Rule: RuleSelfLoop, NodeID: l.ParentNodeID, LinkID: l.ID, Message: fmt.Sprintf("%s links a node to itself", linkLabel(l))}
		}
	}

	seen := make(map[[2]string]struct{}, len(links))
	for _, l := range links {
		key := [2]string{l.ParentNodeID, l.ChildNodeID}
		if _, dup := seen[key]; dup {
			return &ValidationError{Rule: RuleDuplicateLink, LinkID: l.ID, Message: fmt.Sprintf("%s is duplicated", linkLabel(l))}
		}
		seen[key] = struct{}{}
	}

	for _, l := range links {
		if l.Kind() == quest.EdgeSequencing {
			continue
		}
		if byID[l.ParentNodeID].IsGroup() && byID[l.ChildNodeID].IsGroup() {
			return &ValidationError{Rule: RuleGroupToGroup, LinkID: l.ID, Message: fmt.Sprintf("%s connects two group nodes", linkLabel(l))}
		}
	}
	return nil
}
