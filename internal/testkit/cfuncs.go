//go:build cgo

package testkit

/*
#include <stdarg.h>
#include <stdint.h>
#include <string.h>

typedef struct { int32_t x; float y; } dffi_pt;
typedef struct { int64_t a, b, c; } dffi_big;
typedef struct { double x, y; } dffi_vec2;
typedef union { uint32_t bits; float f; } dffi_num;
typedef struct { char tag; double v; } dffi_tagged;

int32_t dffi_add_i32(int32_t a, int32_t b) { return a + b; }
int8_t dffi_neg_i8(int8_t a) { return (int8_t)-a; }
uint64_t dffi_mul_u64(uint64_t a, uint64_t b) { return a * b; }
float dffi_halve_f32(float a) { return a / 2; }
_Bool dffi_is_odd(int32_t a) { return a & 1; }

double dffi_sum_doubles(int n, ...) {
  va_list ap;
  double s = 0;
  va_start(ap, n);
  for (int i = 0; i < n; i++) s += va_arg(ap, double);
  va_end(ap);
  return s;
}

int64_t dffi_sum_ints(int n, ...) {
  va_list ap;
  int64_t s = 0;
  va_start(ap, n);
  for (int i = 0; i < n; i++) s += va_arg(ap, int);
  va_end(ap);
  return s;
}

dffi_pt dffi_pt_scale(dffi_pt p, int32_t k) {
  dffi_pt r = { p.x * k, p.y * (float)k };
  return r;
}

dffi_big dffi_big_make(int64_t a, int64_t b, int64_t c) {
  dffi_big r = { a, b, c };
  return r;
}

int64_t dffi_big_sum(dffi_big v) { return v.a + v.b + v.c; }

dffi_vec2 dffi_vec2_add(dffi_vec2 a, dffi_vec2 b) {
  dffi_vec2 r = { a.x + b.x, a.y + b.y };
  return r;
}

uint32_t dffi_num_bits(dffi_num n) { return n.bits; }

double dffi_tagged_value(dffi_tagged t) { return t.tag == 'n' ? -t.v : t.v; }

void dffi_fill(uint8_t* dst, uint8_t b, size_t n) { memset(dst, b, n); }

int32_t dffi_deref(const int32_t* p) { return *p; }

const char* dffi_greeting(void) { return "hello from C"; }

void dffi_noop(void) {}
*/
import "C"

import "unsafe"

// Symbols returns the fixture functions by name:
//
//	add_i32       int32 (int32, int32)
//	neg_i8        int8 (int8)
//	mul_u64       uint64 (uint64, uint64)
//	halve_f32     float (float)
//	is_odd        bool (int32)
//	sum_doubles   double (int, ...)        sums n doubles
//	sum_ints      int64 (int, ...)         sums n ints
//	pt_scale      pt (pt, int32)           pt is {int32 x; float y}
//	big_make      big (int64, int64, int64) big is {int64 a, b, c}
//	big_sum       int64 (big)
//	vec2_add      vec2 (vec2, vec2)        vec2 is {double x, y}
//	num_bits      uint32 (num)             num is union {uint32 bits; float f}
//	tagged_value  double (tagged)          tagged is {char tag; double v}
//	fill          void (uint8*, uint8, size_t)
//	deref         int32 (const int32*)
//	greeting      const char* ()
//	noop          void ()
func Symbols() map[string]uintptr {
	return map[string]uintptr{
		"add_i32":      uintptr(unsafe.Pointer(C.dffi_add_i32)),
		"neg_i8":       uintptr(unsafe.Pointer(C.dffi_neg_i8)),
		"mul_u64":      uintptr(unsafe.Pointer(C.dffi_mul_u64)),
		"halve_f32":    uintptr(unsafe.Pointer(C.dffi_halve_f32)),
		"is_odd":       uintptr(unsafe.Pointer(C.dffi_is_odd)),
		"sum_doubles":  uintptr(unsafe.Pointer(C.dffi_sum_doubles)),
		"sum_ints":     uintptr(unsafe.Pointer(C.dffi_sum_ints)),
		"pt_scale":     uintptr(unsafe.Pointer(C.dffi_pt_scale)),
		"big_make":     uintptr(unsafe.Pointer(C.dffi_big_make)),
		"big_sum":      uintptr(unsafe.Pointer(C.dffi_big_sum)),
		"vec2_add":     uintptr(unsafe.Pointer(C.dffi_vec2_add)),
		"num_bits":     uintptr(unsafe.Pointer(C.dffi_num_bits)),
		"tagged_value": uintptr(unsafe.Pointer(C.dffi_tagged_value)),
		"fill":         uintptr(unsafe.Pointer(C.dffi_fill)),
		"deref":        uintptr(unsafe.Pointer(C.dffi_deref)),
		"greeting":     uintptr(unsafe.Pointer(C.dffi_greeting)),
		"noop":         uintptr(unsafe.Pointer(C.dffi_noop)),
	}
}
