package driver_test

import (
	"bytes"
	"strings"
	"testing"

	"wisp/pkg/driver"
)

// bufSink collects print output the way the VM writes it: driver.Session
// accepts any vm.Sink, so a buffer stands in for a real stdout.
type bufSink struct{ buf bytes.Buffer }

func (s *bufSink) Write(p []byte) (int, error) { return s.buf.Write(p) }

type runCase struct {
	name    string
	src     string
	want    string // expected stdout, trimmed
	wantErr string // substring expected in the error, if non-empty
}

func runProgram(t *testing.T, src string) (string, error) {
	t.Helper()
	sink := &bufSink{}
	s := driver.New(driver.Options{Stdout: sink})
	_, err := s.Run("<test>", src)
	return strings.TrimSpace(sink.buf.String()), err
}

func TestArithmeticPrecedence(t *testing.T) {
	cases := []runCase{
		{name: "PrecedenceMulOverAdd", src: "print 2 + 3 * 4\n", want: "14"},
		{name: "PrecedencePow", src: "print 2 ** 3 ** 2\n", want: "512"}, // right-assoc: 2**(3**2)
		{name: "IntDivIsFloat", src: "print 7 / 2\n", want: "3.5"},
		{name: "IntModStaysInt", src: "print 7 % 2\n", want: "1"},
		{name: "NegIntPowPromotesFloat", src: "x := 2 ** -1\nprint x\n", want: "0.5"},
		{name: "DivisionByZero", src: "print 1 / 0\n", wantErr: "NumericError"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := runProgram(t, tc.src)
			if tc.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if out != tc.want {
				t.Fatalf("output = %q, want %q", out, tc.want)
			}
		})
	}
}

func TestWhileLoopCountdown(t *testing.T) {
	src := `
n := 3
while n > 0:
    print n
    n = n - 1
`
	out, err := runProgram(t, src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "3\n2\n1" {
		t.Fatalf("output = %q", out)
	}
}

func TestForRangeLoop(t *testing.T) {
	src := `
total := 0
for i in 1..=5:
    total = total + i
print total
`
	out, err := runProgram(t, src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "15" {
		t.Fatalf("output = %q", out)
	}
}

func TestClosureCapturesUpvalue(t *testing.T) {
	src := `
fn makeCounter():
    count := 0
    fn increment():
        count = count + 1
        return count
    return increment

counter := makeCounter()
print counter()
print counter()
print counter()
`
	out, err := runProgram(t, src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "1\n2\n3" {
		t.Fatalf("output = %q", out)
	}
}

func TestDefaultParams(t *testing.T) {
	src := `
fn greet(name, greeting="hello"):
    print greeting + " " + name

greet("ada")
greet("lin", "hi")
`
	out, err := runProgram(t, src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "hello ada\nhi lin" {
		t.Fatalf("output = %q", out)
	}
}

func TestSingleInheritanceAndSuper(t *testing.T) {
	src := `
class Animal:
    sound = "..."
    fn __init__(self, name):
        self.name = name
    fn speak(self):
        return self.name + " says " + self.sound

class Dog(Animal):
    sound = "Woof"
    fn speak(self):
        return super.speak() + "!"

d := Dog("Rex")
print d.speak()
`
	out, err := runProgram(t, src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "Rex says Woof!" {
		t.Fatalf("output = %q", out)
	}
}

// A method's explicit self parameter costs no register and no arity: the
// receiver always arrives through the call's bound self slot, never as a
// positional argument, so B().t() must not raise ArityMismatch.
func TestMethodWithExplicitSelfParam(t *testing.T) {
	src := `
class B:
    fn t(self):
        return "ok"

print B().t()
`
	out, err := runProgram(t, src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "ok" {
		t.Fatalf("output = %q", out)
	}
}

func TestFrozenInstanceRejectsNewFields(t *testing.T) {
	src := `
class Point:
    x = 0
    y = 0

p := Point()
p.z = 1
`
	_, err := runProgram(t, src)
	if err == nil || !strings.Contains(err.Error(), "KeyError") {
		t.Fatalf("expected KeyError, got %v", err)
	}
}

func TestOptionalChainingAndKeyError(t *testing.T) {
	cases := []runCase{
		{name: "OptionalMemberOnNone", src: "x := none\nprint x?.y\n", want: "none"},
		{name: "MissingTableKeyIsKeyError", src: "t := {}\nprint t[\"missing\"]\n", wantErr: "KeyError"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := runProgram(t, tc.src)
			if tc.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if out != tc.want {
				t.Fatalf("output = %q, want %q", out, tc.want)
			}
		})
	}
}

func TestArityMismatch(t *testing.T) {
	src := `
fn add(a, b):
    return a + b

print add(1)
`
	_, err := runProgram(t, src)
	if err == nil || !strings.Contains(err.Error(), "ArityMismatch") {
		t.Fatalf("expected ArityMismatch, got %v", err)
	}
}

func TestArityMismatchOnExcessArgs(t *testing.T) {
	src := `
fn f(a, b=10):
    return a + b

print f(1, 2, 3)
`
	_, err := runProgram(t, src)
	if err == nil || !strings.Contains(err.Error(), "ArityMismatch") {
		t.Fatalf("expected ArityMismatch, got %v", err)
	}
}

func TestIntegerOverflowPromotesToFloat(t *testing.T) {
	src := `print 2000000000 + 200000000`
	out, err := runProgram(t, src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "2.2e+09" {
		t.Fatalf("output = %q", out)
	}
}

func TestChainedOptionalAccessShortCircuits(t *testing.T) {
	src := `
class Box:
    fn __init__(self, inner):
        self.inner = inner

b := Box(none)
print b.inner?.value.name
`
	out, err := runProgram(t, src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "none" {
		t.Fatalf("output = %q", out)
	}
}

func TestListAndTableBuiltins(t *testing.T) {
	src := `
xs := [1, 2, 3]
xs.push(4)
print xs.len()
print xs.pop()

t := {a: 1, b: 2}
print t.len()
`
	out, err := runProgram(t, src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "4\n4\n2" {
		t.Fatalf("output = %q", out)
	}
}

func TestPersistentEvalSession(t *testing.T) {
	sink := &bufSink{}
	s := driver.New(driver.Options{Stdout: sink})
	if _, err := s.Eval("x := 10"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, err := s.Eval("x + 5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := s.Stringify(v); got != "15" {
		t.Fatalf("got %q, want 15", got)
	}
}

func TestCheckReportsSyntaxErrorsWithoutRunning(t *testing.T) {
	sink := &bufSink{}
	s := driver.New(driver.Options{Stdout: sink})
	errs := s.Check("x := (1 +\n")
	if len(errs) == 0 {
		t.Fatalf("expected at least one diagnostic")
	}
	if sink.buf.Len() != 0 {
		t.Fatalf("Check must not execute anything, got stdout %q", sink.buf.String())
	}
}
