package proof

import (
	"fmt"
	"math/big"

	"github.com/blang/semver/v4"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/fxamacker/cbor/v2"
	"golang.org/x/sync/errgroup"

	"github.com/verisql/verisql"
	"github.com/verisql/verisql/sql"
)

// QueryProof is the decoded proof body of a verifiable query result. Field
// order mirrors the transcript schedule.
type QueryProof struct {
	FirstRoundCommitments [][]byte
	ChiLengths            []int
	PostChallengeCount    int
	BitDistributions      []BitDistribution
	FinalRoundCommitments [][]byte
	NumSubpolynomials     int
	SumcheckRounds        [][]fr.Element
	FirstRoundEvals       []fr.Element
	FinalRoundEvals       []fr.Element
	BaseEvals             []fr.Element
	Opening               []byte
}

// VerifiableQueryResult carries a claimed result table together with the
// proof that it is the correct answer to a plan over committed data.
type VerifiableQueryResult struct {
	Result *sql.Table
	Proof  *QueryProof
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	decMode, err = cbor.DecOptions{
		MaxArrayElements: 134217728,
		MaxMapPairs:      134217728,
	}.DecMode()
	if err != nil {
		panic(err)
	}
}

type wireEnvelope struct {
	Version string `cbor:"1,keyasint"`
	Result  []byte `cbor:"2,keyasint"`
	Proof   []byte `cbor:"3,keyasint"`
}

type wireProof struct {
	FirstRoundCommitments [][]byte   `cbor:"1,keyasint"`
	ChiLengths            []uint64   `cbor:"2,keyasint"`
	PostChallengeCount    uint64     `cbor:"3,keyasint"`
	BitDistributions      [][]byte   `cbor:"4,keyasint"`
	FinalRoundCommitments [][]byte   `cbor:"5,keyasint"`
	NumSubpolynomials     uint64     `cbor:"6,keyasint"`
	SumcheckRounds        [][][]byte `cbor:"7,keyasint"`
	FirstRoundEvals       [][]byte   `cbor:"8,keyasint"`
	FinalRoundEvals       [][]byte   `cbor:"9,keyasint"`
	BaseEvals             [][]byte   `cbor:"10,keyasint"`
	Opening               []byte     `cbor:"11,keyasint"`
}

type wireTable struct {
	NumRows uint64       `cbor:"1,keyasint"`
	Names   []string     `cbor:"2,keyasint"`
	Columns []wireColumn `cbor:"3,keyasint"`
}

type wireColumn struct {
	Kind      uint8    `cbor:"1,keyasint"`
	Precision uint8    `cbor:"2,keyasint,omitempty"`
	Scale     int8     `cbor:"3,keyasint,omitempty"`
	Bools     []bool   `cbor:"4,keyasint,omitempty"`
	Ints      []int64  `cbor:"5,keyasint,omitempty"`
	Bigs      [][]byte `cbor:"6,keyasint,omitempty"`
	Scalars   [][]byte `cbor:"7,keyasint,omitempty"`
	Strs      []string `cbor:"8,keyasint,omitempty"`
	Raws      [][]byte `cbor:"9,keyasint,omitempty"`
	Presence  []bool   `cbor:"10,keyasint,omitempty"`
}

func scalarsToBytes(xs []fr.Element) [][]byte {
	out := make([][]byte, len(xs))
	for i := range xs {
		b := xs[i].Bytes()
		out[i] = b[:]
	}
	return out
}

func scalarsFromBytes(bs [][]byte) []fr.Element {
	out := make([]fr.Element, len(bs))
	for i := range bs {
		out[i].SetBytes(bs[i])
	}
	return out
}

// encodeBig serializes a signed big integer as a sign byte followed by the
// big-endian magnitude.
func encodeBig(v *big.Int) []byte {
	out := make([]byte, 1, 1+len(v.Bytes()))
	if v.Sign() < 0 {
		out[0] = 1
	}
	return append(out, v.Bytes()...)
}

func decodeBig(data []byte) (big.Int, error) {
	var v big.Int
	if len(data) == 0 {
		return v, fmt.Errorf("proof: empty big integer encoding")
	}
	v.SetBytes(data[1:])
	if data[0] == 1 {
		v.Neg(&v)
	} else if data[0] != 0 {
		return v, fmt.Errorf("proof: bad big integer sign byte %d", data[0])
	}
	return v, nil
}

// encodeResultTable produces the canonical blob of a result table. The same
// bytes are absorbed into the transcript and shipped in the envelope, so the
// encoding must be deterministic.
func encodeResultTable(t *sql.Table) ([]byte, error) {
	w := wireTable{
		NumRows: uint64(t.NumRows()),
		Names:   t.ColumnNames(),
		Columns: make([]wireColumn, t.NumColumns()),
	}
	for i := 0; i < t.NumColumns(); i++ {
		col := t.Column(i)
		typ := col.Type()
		wc := wireColumn{Kind: uint8(typ.Kind), Precision: typ.Precision, Scale: typ.Scale}
		switch typ.Kind {
		case sql.KindBoolean:
			wc.Bools = col.Bools()
		case sql.KindTinyInt, sql.KindSmallInt, sql.KindInt, sql.KindBigInt, sql.KindTimestampTZ:
			wc.Ints = col.Ints()
		case sql.KindInt128, sql.KindDecimal75:
			bigs := col.Bigs()
			wc.Bigs = make([][]byte, len(bigs))
			for j := range bigs {
				wc.Bigs[j] = encodeBig(&bigs[j])
			}
		case sql.KindScalar:
			wc.Scalars = scalarsToBytes(col.ScalarValues())
		case sql.KindVarChar:
			wc.Strs = col.Strings()
		case sql.KindVarBinary:
			wc.Raws = col.Raws()
		default:
			return nil, fmt.Errorf("proof: cannot encode column kind %s", typ.Kind)
		}
		wc.Presence = col.Presence()
		w.Columns[i] = wc
	}
	return encMode.Marshal(w)
}

func decodeResultTable(data []byte) (*sql.Table, error) {
	var w wireTable
	if err := decMode.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("proof: decoding result table: %w", err)
	}
	if len(w.Names) != len(w.Columns) {
		return nil, fmt.Errorf("proof: result table has %d names for %d columns", len(w.Names), len(w.Columns))
	}
	t := sql.NewTable(int(w.NumRows))
	for i, wc := range w.Columns {
		var col sql.Column
		switch sql.Kind(wc.Kind) {
		case sql.KindBoolean:
			col = sql.NewBooleanColumn(wc.Bools)
		case sql.KindTinyInt:
			col = sql.NewTinyIntColumn(wc.Ints)
		case sql.KindSmallInt:
			col = sql.NewSmallIntColumn(wc.Ints)
		case sql.KindInt:
			col = sql.NewIntColumn(wc.Ints)
		case sql.KindBigInt:
			col = sql.NewBigIntColumn(wc.Ints)
		case sql.KindTimestampTZ:
			col = sql.NewTimestampTZColumn(wc.Ints)
		case sql.KindInt128, sql.KindDecimal75:
			bigs := make([]big.Int, len(wc.Bigs))
			for j := range wc.Bigs {
				v, err := decodeBig(wc.Bigs[j])
				if err != nil {
					return nil, err
				}
				bigs[j] = v
			}
			if sql.Kind(wc.Kind) == sql.KindInt128 {
				col = sql.NewInt128Column(bigs)
			} else {
				col = sql.NewDecimalColumn(wc.Precision, wc.Scale, bigs)
			}
		case sql.KindScalar:
			col = sql.NewScalarColumn(scalarsFromBytes(wc.Scalars))
		case sql.KindVarChar:
			col = sql.NewVarCharColumn(wc.Strs)
		case sql.KindVarBinary:
			col = sql.NewVarBinaryColumn(wc.Raws)
		default:
			return nil, fmt.Errorf("proof: unknown column kind %d", wc.Kind)
		}
		if wc.Presence != nil {
			if len(wc.Presence) != col.Len() {
				return nil, fmt.Errorf("proof: presence length mismatch in column %q", w.Names[i])
			}
			col = col.WithPresence(wc.Presence)
		}
		if err := t.AddColumn(w.Names[i], col); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func encodeProofBody(p *QueryProof) ([]byte, error) {
	w := wireProof{
		FirstRoundCommitments: p.FirstRoundCommitments,
		ChiLengths:            make([]uint64, len(p.ChiLengths)),
		PostChallengeCount:    uint64(p.PostChallengeCount),
		BitDistributions:      make([][]byte, len(p.BitDistributions)),
		FinalRoundCommitments: p.FinalRoundCommitments,
		NumSubpolynomials:     uint64(p.NumSubpolynomials),
		SumcheckRounds:        make([][][]byte, len(p.SumcheckRounds)),
		FirstRoundEvals:       scalarsToBytes(p.FirstRoundEvals),
		FinalRoundEvals:       scalarsToBytes(p.FinalRoundEvals),
		BaseEvals:             scalarsToBytes(p.BaseEvals),
		Opening:               p.Opening,
	}
	for i, n := range p.ChiLengths {
		w.ChiLengths[i] = uint64(n)
	}
	for i := range p.BitDistributions {
		b, err := p.BitDistributions[i].MarshalBinary()
		if err != nil {
			return nil, err
		}
		w.BitDistributions[i] = b
	}
	for i, round := range p.SumcheckRounds {
		w.SumcheckRounds[i] = scalarsToBytes(round)
	}
	return encMode.Marshal(w)
}

func decodeProofBody(data []byte) (*QueryProof, error) {
	var w wireProof
	if err := decMode.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("proof: decoding proof body: %w", err)
	}
	p := &QueryProof{
		FirstRoundCommitments: w.FirstRoundCommitments,
		ChiLengths:            make([]int, len(w.ChiLengths)),
		PostChallengeCount:    int(w.PostChallengeCount),
		BitDistributions:      make([]BitDistribution, len(w.BitDistributions)),
		FinalRoundCommitments: w.FinalRoundCommitments,
		NumSubpolynomials:     int(w.NumSubpolynomials),
		SumcheckRounds:        make([][]fr.Element, len(w.SumcheckRounds)),
		FirstRoundEvals:       scalarsFromBytes(w.FirstRoundEvals),
		FinalRoundEvals:       scalarsFromBytes(w.FinalRoundEvals),
		BaseEvals:             scalarsFromBytes(w.BaseEvals),
		Opening:               w.Opening,
	}
	for i, n := range w.ChiLengths {
		p.ChiLengths[i] = int(n)
	}
	for i := range w.BitDistributions {
		if err := p.BitDistributions[i].UnmarshalBinary(w.BitDistributions[i]); err != nil {
			return nil, err
		}
	}
	for i := range w.SumcheckRounds {
		p.SumcheckRounds[i] = scalarsFromBytes(w.SumcheckRounds[i])
	}
	return p, nil
}

// MarshalBinary encodes the result and proof under a versioned envelope.
func (r *VerifiableQueryResult) MarshalBinary() ([]byte, error) {
	resultBlob, err := encodeResultTable(r.Result)
	if err != nil {
		return nil, err
	}
	proofBlob, err := encodeProofBody(r.Proof)
	if err != nil {
		return nil, err
	}
	return encMode.Marshal(wireEnvelope{
		Version: verisql.Version.String(),
		Result:  resultBlob,
		Proof:   proofBlob,
	})
}

// UnmarshalBinary decodes an envelope, rejecting incompatible versions. The
// two sections decode concurrently.
func (r *VerifiableQueryResult) UnmarshalBinary(data []byte) error {
	var env wireEnvelope
	if err := decMode.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("proof: decoding envelope: %w", err)
	}
	v, err := semver.Parse(env.Version)
	if err != nil {
		return fmt.Errorf("proof: bad envelope version %q: %w", env.Version, err)
	}
	if v.Major != verisql.Version.Major || (v.Major == 0 && v.Minor != verisql.Version.Minor) {
		return fmt.Errorf("proof: envelope version %s incompatible with %s", v, verisql.Version)
	}

	var g errgroup.Group
	g.Go(func() error {
		t, err := decodeResultTable(env.Result)
		if err != nil {
			return err
		}
		r.Result = t
		return nil
	})
	g.Go(func() error {
		p, err := decodeProofBody(env.Proof)
		if err != nil {
			return err
		}
		r.Proof = p
		return nil
	})
	return g.Wait()
}
