package testutil

import (
	"context"
	"crypto/sha256"
	"encoding/base32"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/tokenlabs/dipprobe/internal/candid"
	"github.com/tokenlabs/dipprobe/internal/dfx"
)

// Ledger is an in-memory stand-in for the dfx toolchain plus a deployed
// DIP20 token canister. It implements dfx.Runner by interpreting the same
// argument vectors the harness would pass to the real binary and answering
// in Candid textual form.
//
// The token semantics mirror the canister the harness targets: transfers
// and approvals charge the configured fee to the fee collector, approve
// stores value+fee as the allowance, and transferFrom spends value+fee
// from the allowance.
//
// Thread-safety: guarded by a mutex, though harness runs are sequential.
type Ledger struct {
	mu sync.Mutex

	identities map[string]bool
	deployed   bool

	logo        string
	name        string
	symbol      string
	decimals    uint8
	supply      uint64
	owner       candid.Principal
	fee         uint64
	feeTo       candid.Principal
	historySize uint64

	balances   map[candid.Principal]uint64
	allowances map[candid.Principal]map[candid.Principal]uint64

	// Requests records every invocation for test assertions.
	Requests []dfx.Request

	failNext error
}

// NewLedger creates an undeployed simulated toolchain.
func NewLedger() *Ledger {
	return &Ledger{
		identities: make(map[string]bool),
		balances:   make(map[candid.Principal]uint64),
		allowances: make(map[candid.Principal]map[candid.Principal]uint64),
	}
}

// PrincipalFor derives a deterministic principal-shaped identifier from an
// identity or canister name.
func PrincipalFor(name string) candid.Principal {
	sum := sha256.Sum256([]byte(name))
	enc := strings.ToLower(base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(sum[:10]))
	groups := []string{enc[0:5], enc[5:10], enc[10:15], enc[15:16]}
	return candid.Principal(strings.Join(groups, "-"))
}

// FailNext makes the next Run call fail with err, simulating a transient
// toolchain or network failure.
func (l *Ledger) FailNext(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failNext = err
}

// Balance reads a balance directly, for test assertions.
func (l *Ledger) Balance(p candid.Principal) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[p]
}

// Allowance reads an allowance directly, for test assertions.
func (l *Ledger) Allowance(owner, spender candid.Principal) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.allowances[owner][spender]
}

// Run implements dfx.Runner.
func (l *Ledger) Run(_ context.Context, req dfx.Request) (dfx.Output, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.Requests = append(l.Requests, req)
	if l.failNext != nil {
		err := l.failNext
		l.failNext = nil
		return dfx.Output{}, &dfx.ExecError{Args: req.Args, Err: err}
	}

	pos, flags := splitArgs(req.Args)
	if len(pos) == 0 {
		return l.fail(req, "no subcommand")
	}

	switch pos[0] {
	case "identity":
		return l.runIdentity(req, pos, flags)
	case "deploy":
		return l.runDeploy(req, pos, flags)
	case "canister":
		if len(pos) >= 2 && pos[1] == "id" {
			return ok(string(PrincipalFor("canister:"+pos[2])) + "\n")
		}
		if len(pos) >= 2 && pos[1] == "call" {
			return l.runCall(req, pos, flags)
		}
		return l.fail(req, "unknown canister subcommand")
	case "ping":
		return ok("")
	default:
		return l.fail(req, fmt.Sprintf("unknown subcommand %q", pos[0]))
	}
}

func (l *Ledger) runIdentity(req dfx.Request, pos []string, flags map[string]string) (dfx.Output, error) {
	if len(pos) < 2 {
		return l.fail(req, "identity: missing subcommand")
	}
	switch pos[1] {
	case "new":
		if len(pos) < 3 {
			return l.fail(req, "identity new: missing name")
		}
		// Real dfx refuses to overwrite an existing identity.
		if l.identities[pos[2]] {
			return l.fail(req, fmt.Sprintf("identity new: identity %q already exists", pos[2]))
		}
		l.identities[pos[2]] = true
		return ok("")
	case "list":
		names := make([]string, 0, len(l.identities))
		for name := range l.identities {
			names = append(names, name)
		}
		sort.Strings(names)
		return ok(strings.Join(names, "\n") + "\n")
	case "use":
		if len(pos) < 3 || !l.identities[pos[2]] {
			return l.fail(req, "identity use: unknown identity")
		}
		return ok("")
	case "get-principal":
		name := flags["identity"]
		if name == "" || !l.identities[name] {
			return l.fail(req, "get-principal: unknown identity")
		}
		return ok(string(PrincipalFor(name)) + "\n")
	default:
		return l.fail(req, "identity: unknown subcommand")
	}
}

func (l *Ledger) runDeploy(req dfx.Request, pos []string, flags map[string]string) (dfx.Output, error) {
	if l.deployed && flags["mode"] != "reinstall" {
		return ok("canister already installed\n")
	}

	vals, err := candid.Parse(flags["argument"])
	if err != nil {
		return l.fail(req, fmt.Sprintf("deploy: bad argument: %v", err))
	}
	if len(vals) != 9 {
		return l.fail(req, fmt.Sprintf("deploy: expected 9 init args, got %d", len(vals)))
	}

	logo, err0 := candid.AsText(vals[0])
	name, err1 := candid.AsText(vals[1])
	symbol, err2 := candid.AsText(vals[2])
	decimals, err3 := candid.AsNat8(vals[3])
	supply, err4 := candid.AsNat(vals[4])
	owner, err5 := candid.AsPrincipal(vals[5])
	fee, err6 := candid.AsNat(vals[6])
	feeTo, err7 := candid.AsPrincipal(vals[7])
	if _, err8 := candid.AsPrincipal(vals[8]); err8 != nil {
		return l.fail(req, "deploy: bad history-log principal")
	}
	for _, e := range []error{err0, err1, err2, err3, err4, err5, err6, err7} {
		if e != nil {
			return l.fail(req, fmt.Sprintf("deploy: bad init arg: %v", e))
		}
	}

	l.logo = string(logo)
	l.name = string(name)
	l.symbol = string(symbol)
	l.decimals = uint8(decimals)
	l.supply = uint64(supply)
	l.owner = owner
	l.fee = uint64(fee)
	l.feeTo = feeTo
	l.balances = map[candid.Principal]uint64{owner: uint64(supply)}
	l.allowances = make(map[candid.Principal]map[candid.Principal]uint64)
	l.historySize = 1
	l.deployed = true

	return ok("Deployed canisters.\n")
}

func (l *Ledger) runCall(req dfx.Request, pos []string, flags map[string]string) (dfx.Output, error) {
	if !l.deployed {
		return l.fail(req, "canister not installed")
	}
	if len(pos) < 4 {
		return l.fail(req, "canister call: missing method")
	}
	method := pos[3]
	argStr := "()"
	if len(pos) >= 5 {
		argStr = pos[4]
	}
	args, err := candid.Parse(argStr)
	if err != nil {
		return l.fail(req, fmt.Sprintf("call %s: bad arguments: %v", method, err))
	}

	caller := PrincipalFor(flags["identity"])
	if flags["identity"] == "" || !l.identities[flags["identity"]] {
		return l.fail(req, fmt.Sprintf("call %s: unknown caller identity", method))
	}

	switch method {
	case "name":
		return okVal(candid.Text(l.name))
	case "symbol":
		return okVal(candid.Text(l.symbol))
	case "logo":
		return okVal(candid.Text(l.logo))
	case "decimals":
		return okVal(candid.Nat8(l.decimals))
	case "totalSupply":
		return okVal(candid.Nat(l.supply))
	case "historySize":
		return okVal(candid.Nat(l.historySize))
	case "owner":
		return okVal(l.owner)
	case "getMetadata":
		return okVal(candid.Record{
			{Name: "logo", Value: candid.Text(l.logo)},
			{Name: "name", Value: candid.Text(l.name)},
			{Name: "symbol", Value: candid.Text(l.symbol)},
			{Name: "decimals", Value: candid.Nat8(l.decimals)},
			{Name: "totalSupply", Value: candid.Nat(l.supply)},
			{Name: "owner", Value: l.owner},
			{Name: "fee", Value: candid.Nat(l.fee)},
		})
	case "balanceOf":
		p, err := oneMethodPrincipal(args)
		if err != nil {
			return l.fail(req, err.Error())
		}
		return okVal(candid.Nat(l.balances[p]))
	case "allowance":
		if len(args) != 2 {
			return l.fail(req, "allowance: want (principal, principal)")
		}
		o, err1 := candid.AsPrincipal(args[0])
		s, err2 := candid.AsPrincipal(args[1])
		if err1 != nil || err2 != nil {
			return l.fail(req, "allowance: want (principal, principal)")
		}
		return okVal(candid.Nat(l.allowances[o][s]))
	case "transfer":
		if len(args) != 2 {
			return l.fail(req, "transfer: want (principal, nat)")
		}
		to, err1 := candid.AsPrincipal(args[0])
		value, err2 := candid.AsNat(args[1])
		if err1 != nil || err2 != nil {
			return l.fail(req, "transfer: want (principal, nat)")
		}
		return l.transfer(caller, to, uint64(value))
	case "transferFrom":
		if len(args) != 3 {
			return l.fail(req, "transferFrom: want (principal, principal, nat)")
		}
		from, err1 := candid.AsPrincipal(args[0])
		to, err2 := candid.AsPrincipal(args[1])
		value, err3 := candid.AsNat(args[2])
		if err1 != nil || err2 != nil || err3 != nil {
			return l.fail(req, "transferFrom: want (principal, principal, nat)")
		}
		return l.transferFrom(caller, from, to, uint64(value))
	case "approve":
		if len(args) != 2 {
			return l.fail(req, "approve: want (principal, nat)")
		}
		spender, err1 := candid.AsPrincipal(args[0])
		value, err2 := candid.AsNat(args[1])
		if err1 != nil || err2 != nil {
			return l.fail(req, "approve: want (principal, nat)")
		}
		return l.approve(caller, spender, uint64(value))
	default:
		return l.fail(req, fmt.Sprintf("canister has no method %q", method))
	}
}

func (l *Ledger) transfer(from, to candid.Principal, value uint64) (dfx.Output, error) {
	if l.balances[from] < value+l.fee {
		return receiptErr("InsufficientBalance")
	}
	l.chargeFee(from)
	l.move(from, to, value)
	l.historySize++
	return receiptOk(l.historySize - 1)
}

func (l *Ledger) transferFrom(spender, from, to candid.Principal, value uint64) (dfx.Output, error) {
	if l.allowances[from][spender] < value+l.fee {
		return receiptErr("InsufficientAllowance")
	}
	if l.balances[from] < value+l.fee {
		return receiptErr("InsufficientBalance")
	}
	l.chargeFee(from)
	l.move(from, to, value)
	rest := l.allowances[from][spender] - value - l.fee
	if rest == 0 {
		delete(l.allowances[from], spender)
		if len(l.allowances[from]) == 0 {
			delete(l.allowances, from)
		}
	} else {
		l.allowances[from][spender] = rest
	}
	l.historySize++
	return receiptOk(l.historySize - 1)
}

func (l *Ledger) approve(owner, spender candid.Principal, value uint64) (dfx.Output, error) {
	if l.balances[owner] < l.fee {
		return receiptErr("InsufficientBalance")
	}
	l.chargeFee(owner)
	if value+l.fee == 0 {
		delete(l.allowances[owner], spender)
		if len(l.allowances[owner]) == 0 {
			delete(l.allowances, owner)
		}
	} else {
		if l.allowances[owner] == nil {
			l.allowances[owner] = make(map[candid.Principal]uint64)
		}
		// The canister stores value+fee so a full transferFrom of the
		// approved value can still cover its fee.
		l.allowances[owner][spender] = value + l.fee
	}
	l.historySize++
	return receiptOk(l.historySize - 1)
}

func (l *Ledger) chargeFee(from candid.Principal) {
	if l.fee > 0 {
		l.move(from, l.feeTo, l.fee)
	}
}

func (l *Ledger) move(from, to candid.Principal, value uint64) {
	l.balances[from] -= value
	if l.balances[from] == 0 {
		delete(l.balances, from)
	}
	l.balances[to] += value
}

func (l *Ledger) fail(req dfx.Request, msg string) (dfx.Output, error) {
	out := dfx.Output{Stderr: "Error: " + msg + "\n"}
	return out, &dfx.ExecError{Args: req.Args, Stderr: out.Stderr, Err: fmt.Errorf("exit status 255")}
}

func ok(stdout string) (dfx.Output, error) {
	return dfx.Output{Stdout: stdout}, nil
}

func okVal(v candid.Value) (dfx.Output, error) {
	return ok(candid.EncodeArgs(v) + "\n")
}

func receiptOk(tx uint64) (dfx.Output, error) {
	return okVal(candid.Variant{Tag: "Ok", Value: candid.Nat(tx)})
}

func receiptErr(tag string) (dfx.Output, error) {
	return okVal(candid.Variant{Tag: "Err", Value: candid.Variant{Tag: tag}})
}

func oneMethodPrincipal(args []candid.Value) (candid.Principal, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("want exactly one principal argument")
	}
	return candid.AsPrincipal(args[0])
}

// splitArgs separates positional arguments from --flag and --flag=value
// forms. Value-carrying flags the harness uses (--identity, --network,
// --argument, --mode) may be written either way.
func splitArgs(args []string) ([]string, map[string]string) {
	valueFlags := map[string]bool{
		"identity": true,
		"network":  true,
		"argument": true,
		"mode":     true,
	}
	var pos []string
	flags := make(map[string]string)
	for i := 0; i < len(args); i++ {
		a := args[i]
		if !strings.HasPrefix(a, "--") {
			pos = append(pos, a)
			continue
		}
		name := strings.TrimPrefix(a, "--")
		if eq := strings.Index(name, "="); eq >= 0 {
			flags[name[:eq]] = name[eq+1:]
			continue
		}
		if valueFlags[name] && i+1 < len(args) {
			flags[name] = args[i+1]
			i++
			continue
		}
		flags[name] = "true"
	}
	return pos, flags
}
