package decomposition

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/JamesB-1qbit/Tangelo/internal/domain"
	"github.com/JamesB-1qbit/Tangelo/internal/modules/operators"
	"github.com/JamesB-1qbit/Tangelo/pkg/linalg"
)

// Scheme partitions the orbital space into embedded fragments. A scheme owns
// both the partition and the aggregation weights it returns on the fragments:
// the loop's aggregator applies the weights blindly, so any double counting
// a scheme introduces through overlaps it must also cancel here.
type Scheme interface {
	Name() string
	// Partition carves fragments out of the mean-field solution, folding the
	// current correlation potential into each fragment's one-body block.
	Partition(mf *domain.MeanFieldResult, potential *mat.Dense) ([]*Fragment, error)
}

// NewScheme returns the embedding scheme registered under name. sizes gives
// the fragment sizes in orbitals (summing to the full orbital count for the
// disjoint scheme); nil selects single-orbital fragments.
func NewScheme(name string, sizes []int) (Scheme, error) {
	switch name {
	case "disjoint", "":
		return &DisjointScheme{Sizes: sizes}, nil
	case "overlapping":
		return &OverlappingScheme{Sizes: sizes}, nil
	}
	return nil, fmt.Errorf("unknown embedding scheme %q", name)
}

// SchemeNames lists the registered scheme names.
func SchemeNames() []string {
	return []string{"disjoint", "overlapping"}
}

// DisjointScheme slices the orbital space into consecutive non-overlapping
// blocks. Every aggregation weight is one.
type DisjointScheme struct {
	// Sizes are the block sizes; nil means one orbital per fragment.
	Sizes []int
}

func (s *DisjointScheme) Name() string { return "disjoint" }

func (s *DisjointScheme) Partition(mf *domain.MeanFieldResult, potential *mat.Dense) ([]*Fragment, error) {
	n := mf.Orbitals()
	sizes := s.Sizes
	if sizes == nil {
		sizes = uniformSizes(n, 1)
	}
	total := 0
	for _, k := range sizes {
		if k < 1 {
			return nil, fmt.Errorf("scheme %s: fragment size must be positive, got %d", s.Name(), k)
		}
		total += k
	}
	if total != n {
		return nil, fmt.Errorf("scheme %s: fragment sizes cover %d orbitals, system has %d", s.Name(), total, n)
	}

	fragments := make([]*Fragment, 0, len(sizes))
	start := 0
	for i, k := range sizes {
		orbitals := indexRange(start, k)
		frag, err := buildFragment(fmt.Sprintf("frag-%d", i), orbitals, 1.0, mf, potential)
		if err != nil {
			return nil, err
		}
		fragments = append(fragments, frag)
		start += k
	}
	return fragments, nil
}

// OverlappingScheme slices the orbital space into consecutive blocks and
// extends every block (except the last) by one shared boundary orbital.
// Aggregation weights discount each fragment by the overlap multiplicity of
// its orbitals, so the weighted sum counts every orbital exactly once.
type OverlappingScheme struct {
	Sizes []int
}

func (s *OverlappingScheme) Name() string { return "overlapping" }

func (s *OverlappingScheme) Partition(mf *domain.MeanFieldResult, potential *mat.Dense) ([]*Fragment, error) {
	n := mf.Orbitals()
	sizes := s.Sizes
	if sizes == nil {
		sizes = uniformSizes(n, 1)
	}
	total := 0
	for _, k := range sizes {
		if k < 1 {
			return nil, fmt.Errorf("scheme %s: fragment size must be positive, got %d", s.Name(), k)
		}
		total += k
	}
	if total != n {
		return nil, fmt.Errorf("scheme %s: fragment sizes cover %d orbitals, system has %d", s.Name(), total, n)
	}
	if len(sizes) < 2 {
		return nil, fmt.Errorf("scheme %s: needs at least two fragments to overlap", s.Name())
	}

	// Block ranges, then extend all but the last by its right neighbour's
	// first orbital.
	lists := make([][]int, 0, len(sizes))
	start := 0
	for i, k := range sizes {
		orbitals := indexRange(start, k)
		if i+1 < len(sizes) {
			orbitals = append(orbitals, start+k)
		}
		lists = append(lists, orbitals)
		start += k
	}

	mult := multiplicities(lists, n)
	fragments := make([]*Fragment, 0, len(lists))
	for i, orbitals := range lists {
		// Weight spreads each orbital's contribution over the fragments
		// sharing it: sum_f w_f |f| == n.
		inv := 0.0
		for _, o := range orbitals {
			inv += 1.0 / float64(mult[o])
		}
		weight := inv / float64(len(orbitals))

		frag, err := buildFragment(fmt.Sprintf("frag-%d", i), orbitals, weight, mf, potential)
		if err != nil {
			return nil, err
		}
		fragments = append(fragments, frag)
	}
	return fragments, nil
}

// buildFragment restricts the mean-field problem to the given orbitals and
// folds the correlation potential into the one-body block.
func buildFragment(id string, orbitals []int, weight float64, mf *domain.MeanFieldResult, potential *mat.Dense) (*Fragment, error) {
	n := mf.Orbitals()
	for _, o := range orbitals {
		if o < 0 || o >= n {
			return nil, fmt.Errorf("fragment %s references orbital %d outside system of %d", id, o, n)
		}
	}

	embedded := mat.NewDense(n, n, nil)
	embedded.Add(mf.CoreHamiltonian, potential)
	h1 := linalg.Submatrix(embedded, orbitals)

	var h2 []float64
	if len(mf.TwoElectron) > 0 {
		h2 = linalg.SubTensor4(mf.TwoElectron, n, orbitals)
	}

	electrons := fragmentElectrons(mf.Density, orbitals)
	constant := mf.CoreEnergy * float64(len(orbitals)) / float64(n)

	ints := operators.FromSpatial(constant, h1, h2, electrons/2, electrons-electrons/2)

	return &Fragment{
		ID:        id,
		Orbitals:  orbitals,
		Electrons: electrons,
		Weight:    weight,
		Integrals: ints,
	}, nil
}

// fragmentElectrons assigns electrons from the mean-field density diagonal,
// rounded to the nearest even count (closed-shell active spaces).
func fragmentElectrons(density *mat.Dense, orbitals []int) int {
	sum := 0.0
	for _, o := range orbitals {
		sum += density.At(o, o)
	}
	electrons := 2 * int(math.Round(sum/2))
	if electrons < 0 {
		electrons = 0
	}
	if limit := 2 * len(orbitals); electrons > limit {
		electrons = limit
	}
	return electrons
}

// multiplicities counts, per orbital, how many fragments contain it.
func multiplicities(lists [][]int, n int) []int {
	mult := make([]int, n)
	for _, orbitals := range lists {
		for _, o := range orbitals {
			mult[o]++
		}
	}
	return mult
}

// pairMultiplicities counts how many fragments contain both p and q; used by
// the aggregator to de-duplicate density contributions exactly.
func pairMultiplicities(fragments []*Fragment) map[[2]int]int {
	out := make(map[[2]int]int)
	for _, f := range fragments {
		for _, p := range f.Orbitals {
			for _, q := range f.Orbitals {
				out[[2]int{p, q}]++
			}
		}
	}
	return out
}

func uniformSizes(n, k int) []int {
	sizes := make([]int, 0, n/k)
	for covered := 0; covered < n; covered += k {
		size := k
		if covered+size > n {
			size = n - covered
		}
		sizes = append(sizes, size)
	}
	return sizes
}

func indexRange(start, count int) []int {
	out := make([]int, count)
	for i := range out {
		out[i] = start + i
	}
	return out
}
