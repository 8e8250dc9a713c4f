// Package mna is the Modified Nodal Analysis assembler. It owns the
// node-index and branch-unknown maps and exposes the low-level stamping
// primitives; it knows nothing about element kinds (generalized from the
// teacher's pkg/matrix, which coupled the sparse backend directly to a
// DeviceMatrix interface of the same shape).
package mna

import (
	"github.com/pkg/errors"

	"github.com/edp1096/pwrtran/pkg/linalg"
)

// ErrUnreachableGround describes a node that never receives a stamp at all
// (floating node / unreachable ground). Assembler.Validate reports such
// nodes by index and does not return this error.
var ErrUnreachableGround = errors.New("mna: node has no stamped contribution")

// Assembler maps node/branch names to unknown indices and stamps element
// contributions into a linalg.System each step.
type Assembler struct {
	nodeIndex   map[string]int
	branchIndex map[string]int
	byIndex     map[int]string
	touched     map[int]bool
	sys         linalg.System
}

// NewAssembler builds an assembler with ground ("0"/"gnd") excluded from
// the node map and every other node/branch name assigned the next free
// 1-based index, node names first, then branch names — matching the
// teacher's AssignNodeBranchMaps ordering.
func NewAssembler(nodeNames, branchNames []string) *Assembler {
	a := &Assembler{
		nodeIndex:   make(map[string]int, len(nodeNames)),
		branchIndex: make(map[string]int, len(branchNames)),
		byIndex:     make(map[int]string, len(nodeNames)+len(branchNames)),
		touched:     make(map[int]bool),
	}
	idx := 1
	for _, n := range nodeNames {
		if isGround(n) {
			continue
		}
		if _, ok := a.nodeIndex[n]; !ok {
			a.nodeIndex[n] = idx
			a.byIndex[idx] = n
			idx++
		}
	}
	for _, b := range branchNames {
		if _, ok := a.branchIndex[b]; !ok {
			a.branchIndex[b] = idx
			a.byIndex[idx] = b
			idx++
		}
	}
	a.sys = linalg.NewSystem(idx - 1)
	return a
}

func isGround(name string) bool { return name == "0" || name == "gnd" }

// NodeIndex returns the unknown index for a node name, or 0 for ground.
func (a *Assembler) NodeIndex(name string) int {
	if isGround(name) {
		return 0
	}
	return a.nodeIndex[name]
}

// BranchIndex returns the auxiliary-current unknown index for a branch
// name (a voltage source or an inductor modeled with a branch current).
func (a *Assembler) BranchIndex(name string) int {
	return a.branchIndex[name]
}

// NameOf reverses NodeIndex/BranchIndex, returning the node or branch name
// assigned to unknown index idx (1-based), or "" for an unknown index.
func (a *Assembler) NameOf(idx int) string {
	return a.byIndex[idx]
}

// Size returns the total unknown count: (nodes-1) + branches.
func (a *Assembler) Size() int { return a.sys.Size() }

// Reset zeroes G and b for the next stamp pass.
func (a *Assembler) Reset() {
	a.sys.Reset()
	for k := range a.touched {
		delete(a.touched, k)
	}
}

// StampConductance adds g to G[i,i] and G[j,j], and subtracts it from the
// cross terms G[i,j] / G[j,i]. Ground (index 0) rows/columns are discarded.
func (a *Assembler) StampConductance(i, j int, g float64) {
	if i != 0 {
		a.sys.AddConductance(i, i, g)
		a.touched[i] = true
	}
	if j != 0 {
		a.sys.AddConductance(j, j, g)
		a.touched[j] = true
	}
	if i != 0 && j != 0 {
		a.sys.AddConductance(i, j, -g)
		a.sys.AddConductance(j, i, -g)
	}
}

// StampTerm adds g directly at G[row,col] with no symmetric counterpart.
// Used by multi-terminal nonlinear devices (e.g. a transconductance term
// coupling a controlling node to an output-branch row) where the plain
// two-terminal StampConductance's forced symmetry does not apply. Ground
// (index 0) is discarded.
func (a *Assembler) StampTerm(row, col int, g float64) {
	if row == 0 || col == 0 {
		return
	}
	a.sys.AddConductance(row, col, g)
	a.touched[row] = true
}

// StampCurrent adds a current source of value I flowing from node j into
// node i: b[i] += I, b[j] -= I.
func (a *Assembler) StampCurrent(i, j int, current float64) {
	if i != 0 {
		a.sys.AddRHS(i, current)
		a.touched[i] = true
	}
	if j != 0 {
		a.sys.AddRHS(j, -current)
		a.touched[j] = true
	}
}

// StampVoltageBranch adds the ±1 incidence for a voltage-source-like branch
// k between nodes i (+) and j (-), and fixes b[k] = voltage.
func (a *Assembler) StampVoltageBranch(k, i, j int, voltage float64) {
	a.StampBranchIncidence(k, i, j)
	a.sys.AddRHS(k, voltage)
	a.touched[k] = true
}

// StampBranchIncidence adds the symmetric ±1 KCL/branch-equation coupling
// shared by every element that introduces an auxiliary current unknown
// (voltage sources and branch-current-modeled inductors alike): current
// i_k is taken to flow out of node i, through the branch, into node j.
func (a *Assembler) StampBranchIncidence(k, i, j int) {
	if i != 0 {
		a.sys.AddConductance(k, i, 1)
		a.sys.AddConductance(i, k, 1)
		a.touched[i] = true
	}
	if j != 0 {
		a.sys.AddConductance(k, j, -1)
		a.sys.AddConductance(j, k, -1)
		a.touched[j] = true
	}
}

// StampBranchConductance adds the branch-equation diagonal term for a
// reactive element using a branch-current unknown (e.g. the inductor's
// companion resistance) and the associated history right-hand side.
func (a *Assembler) StampBranchConductance(k int, g, rhs float64) {
	a.sys.AddConductance(k, k, g)
	a.sys.AddRHS(k, rhs)
	a.touched[k] = true
}

// AddDampingConductance adds a small conductance across nodes i,j through
// the ordinary StampConductance path, touched-row bookkeeping included — it
// is the MCP kernel's flip-cycle damping term (§4.4 step 5).
func (a *Assembler) AddDampingConductance(i, j int, g float64) {
	a.StampConductance(i, j, g)
}

// Solve factors and solves the assembled system.
func (a *Assembler) Solve() ([]float64, error) {
	return a.sys.Solve()
}

// Solution returns the last solved unknown vector (1-indexed).
func (a *Assembler) Solution() []float64 { return a.sys.Solution() }

// ResidualNorm reports ||G*x - b|| for diagnostics.
func (a *Assembler) ResidualNorm(x []float64) float64 { return a.sys.ResidualNorm(x) }

// ConditionEstimate reports the optional cheap condition-number estimate.
func (a *Assembler) ConditionEstimate() float64 { return a.sys.ConditionEstimate() }

// Validate reports every node index that never received a stamped
// contribution in the most recent pass — a structural floating-node /
// unreachable-ground signal a caller can turn into MalformedCircuit.
func (a *Assembler) Validate() []int {
	var missing []int
	for _, idx := range a.nodeIndex {
		if !a.touched[idx] {
			missing = append(missing, idx)
		}
	}
	return missing
}
