/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package engine

// Version is reported in every response's Server header as "ksah/<Version>".
const Version = "0.1"
